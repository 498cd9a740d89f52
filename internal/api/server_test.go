package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayushsharma82/sternetd/internal/config"
	"github.com/ayushsharma82/sternetd/internal/db"
	"github.com/ayushsharma82/sternetd/internal/eventbus"
	"github.com/ayushsharma82/sternetd/internal/fleet"
	"github.com/ayushsharma82/sternetd/internal/ledger"
	"github.com/ayushsharma82/sternetd/internal/state"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "api.sqlite"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := state.NewStore(database.DB)
	ldg := ledger.New(database.DB)
	bus := eventbus.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	mgr, err := fleet.NewManager(&config.Config{}, store, bus, ldg)
	if err != nil {
		t.Fatalf("build fleet: %v", err)
	}

	srv := NewServer("127.0.0.1", 0, 0, mgr, ldg)
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	return ts, ldg
}

func TestServer_EventsByTypeFilters(t *testing.T) {
	ts, ldg := newTestServer(t)

	if err := ldg.Append(ledger.EventLinkOnline, "dev-a", nil); err != nil {
		t.Fatal(err)
	}
	if err := ldg.Append(ledger.EventLinkOnline, "dev-b", nil); err != nil {
		t.Fatal(err)
	}
	if err := ldg.Append(ledger.EventStatusReceived, "dev-a", nil); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/events?type=link_online")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var entries []*ledger.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.EventType != ledger.EventLinkOnline {
			t.Errorf("entry type = %q, want %q", e.EventType, ledger.EventLinkOnline)
		}
	}
}

func TestServer_EventsByTypeRejectsUnknownType(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, url := range []string{ts.URL + "/events", ts.URL + "/events?type=bogus"} {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get %s: %v", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", url, resp.StatusCode)
		}
	}
}
