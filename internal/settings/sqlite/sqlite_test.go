package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/roomlink/internal/settings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadBeforeAnySave(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec != (settings.Record{}) {
		t.Fatalf("expected zero record, got %+v", rec)
	}
}

func TestSaveThenLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := settings.Record{
		Username:  "alice",
		ServerURL: "wss://rooms.example.com/ws",
		APIKey:    "opaque-key",
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// Saving again overwrites the single row.
	want.Username = "bob"
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Username != "bob" {
		t.Fatalf("overwrite lost: %+v", got)
	}
}
