package sternet

import (
	"sync"
	"time"
)

// scheduledTimer is a single owned arm/cancel pair around time.AfterFunc.
// Arm always cancels the prior instance first, so at most one instance is
// pending at any time; Cancel is idempotent and safe on a never-armed timer.
type scheduledTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Arm schedules fn after d, replacing any pending instance.
func (t *scheduledTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

// Cancel stops the pending instance, if any.
func (t *scheduledTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
