// Package script embeds a Lua interpreter for user automation hooks. Scripts
// can react to device events and drive desired state through the fleet.
package script

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/ayushsharma82/sternetd/internal/eventbus"
	"github.com/ayushsharma82/sternetd/internal/fleet"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// Work represents work to be executed on the Lua VM.
// All Lua execution MUST go through this to ensure thread safety.
type Work func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution.
type Runtime struct {
	L     *lua.LState
	fleet *fleet.Manager

	logModule     *LogModule
	devicesModule *DevicesModule
	eventsModule  *EventsModule

	workQueue chan Work

	// Closing this channel signals senders to stop. A channel in select
	// is race-free, unlike mutex plus bool.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a new Lua runtime bound to the device fleet.
func NewRuntime(mgr *fleet.Manager) *Runtime {
	r := &Runtime{
		L:         lua.NewState(),
		fleet:     mgr,
		workQueue: make(chan Work, 100),
		closing:   make(chan struct{}),
	}

	r.logModule = NewLogModule()
	r.L.PreloadModule("log", r.logModule.Loader)

	r.devicesModule = NewDevicesModule(mgr)
	r.L.PreloadModule("devices", r.devicesModule.Loader)

	r.eventsModule = NewEventsModule()
	r.L.PreloadModule("events", r.eventsModule.Loader)

	return r
}

// LoadScript loads and executes a Lua script (must be called before Run).
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// RegisterHandlers subscribes the script's event handlers to the bus. Bus
// callbacks only enqueue work; the Lua worker goroutine runs the handlers.
func (r *Runtime) RegisterHandlers(ctx context.Context, bus *eventbus.Bus) {
	for _, bt := range []eventbus.EventType{
		eventbus.EventTypeDeviceOnline,
		eventbus.EventTypeDeviceOffline,
		eventbus.EventTypeDeviceStatus,
	} {
		bt := bt
		if !r.eventsModule.HasHandlers(string(bt)) {
			continue
		}
		bus.Subscribe(bt, func(ev eventbus.Event) {
			r.Do(ctx, func(c context.Context) {
				r.eventsModule.Dispatch(r.L, string(ev.Type), ev.Data)
			})
		})
	}
}

// Do queues work to be executed on the Lua VM (thread-safe, non-blocking).
// Returns false if the runtime is closing, queue is full, or context is cancelled.
func (r *Runtime) Do(ctx context.Context, work Work) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// Run starts the Lua worker goroutine. This is the ONLY goroutine that
// touches the Lua state. Exits when the context is cancelled or the runtime
// is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// Close signals the runtime to stop accepting new work and closes the Lua state.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	// workQueue stays open to avoid send-on-closed-channel panics; it is
	// collected once unreferenced.
	r.L.Close()
}

func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery.
func (r *Runtime) executeWork(ctx context.Context, work Work) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}
