package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ayushsharma82/sternetd/internal/db"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndGetByDevice(t *testing.T) {
	l := openTestLedger(t)

	if err := l.Append(EventLinkOnline, "dev-1", map[string]any{"address": "10.0.0.5"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(EventLinkOffline, "dev-1", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(EventLinkOnline, "dev-2", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := l.GetByDevice("dev-1", 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first
	if entries[0].EventType != EventLinkOffline {
		t.Errorf("entries[0].EventType = %q, want %q", entries[0].EventType, EventLinkOffline)
	}
	if entries[1].Payload["address"] != "10.0.0.5" {
		t.Errorf("payload not preserved: %+v", entries[1].Payload)
	}
	if entries[0].EventID == entries[1].EventID {
		t.Error("event IDs are not unique")
	}
}

func TestLedger_GetByType(t *testing.T) {
	l := openTestLedger(t)

	for _, dev := range []string{"a", "b", "c"} {
		if err := l.Append(EventStatusReceived, dev, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Append(EventLinkOnline, "a", nil); err != nil {
		t.Fatal(err)
	}

	entries, err := l.GetByType(EventStatusReceived, 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	l := openTestLedger(t)

	if err := l.Append(EventLinkOnline, "dev-1", nil); err != nil {
		t.Fatal(err)
	}

	// Retention in the future relative to the entry removes nothing,
	// a negative retention removes everything written so far.
	deleted, err := l.DeleteOlderThan(time.Hour)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d entries, want 0", deleted)
	}

	deleted, err = l.DeleteOlderThan(-time.Hour)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d entries, want 1", deleted)
	}
}
