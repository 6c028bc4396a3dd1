package banlist

import (
	"path/filepath"
	"sort"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bans.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}

	macs := []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"}
	if err := store.Save(macs); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Reopen and verify persistence
	store, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error: %v", err)
	}
	defer store.Close()

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	sort.Strings(loaded)
	sort.Strings(macs)
	if len(loaded) != len(macs) {
		t.Fatalf("Load() returned %d entries, want %d", len(loaded), len(macs))
	}
	for i := range macs {
		if loaded[i] != macs[i] {
			t.Errorf("loaded[%d] = %q, want %q", i, loaded[i], macs[i])
		}
	}
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bans.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	defer store.Close()

	if err := store.Save([]string{"AA:AA:AA:AA:AA:AA"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := store.Save([]string{"BB:BB:BB:BB:BB:BB"}); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "BB:BB:BB:BB:BB:BB" {
		t.Errorf("Load() = %v, want only BB:BB:BB:BB:BB:BB", loaded)
	}
}

func TestSQLiteStoreEmpty(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bans.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	defer store.Close()

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Load() on fresh store = %v, want empty", loaded)
	}
}
