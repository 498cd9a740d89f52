package state

import (
	"path/filepath"
	"testing"

	"github.com/ayushsharma82/sternetd/internal/db"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func TestStore_GetMissingReturnsNoError(t *testing.T) {
	s := openTestStore(t)

	payload, version, err := s.Get("downlighter", "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != nil || version != 0 {
		t.Errorf("expected empty result, got payload=%q version=%d", payload, version)
	}
}

func TestStore_SetIncrementsVersion(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("downlighter", "a", []byte(`{"On":true}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("downlighter", "a", []byte(`{"On":false}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	payload, version, err := s.Get("downlighter", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != `{"On":false}` {
		t.Errorf("payload = %q, want latest write", payload)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
}

func TestStore_ClearByKind(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("downlighter", "a", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("other", "b", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear("downlighter"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if payload, _, _ := s.Get("downlighter", "a"); payload != nil {
		t.Error("downlighter entry survived clear")
	}
	if payload, _, _ := s.Get("other", "b"); payload == nil {
		t.Error("unrelated kind was cleared")
	}
}

func TestTypedStore_RoundTrip(t *testing.T) {
	type lightState struct {
		On         bool `json:"On"`
		Brightness int  `json:"Brightness"`
	}

	s := openTestStore(t)
	typed := NewTypedStore[lightState](s, "downlighter")

	if _, found, err := typed.Get("a"); err != nil || found {
		t.Fatalf("expected not found, got found=%v err=%v", found, err)
	}

	want := lightState{On: true, Brightness: 42}
	if err := typed.Set("a", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, found, err := typed.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := typed.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := typed.Get("a"); found {
		t.Error("entry survived delete")
	}
}
