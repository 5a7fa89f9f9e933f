package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorage_SaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error creating storage, got: %v", err)
	}
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := fs.Save(ctx, "ledger", payload{Name: "test", Count: 3}); err != nil {
		t.Fatalf("Expected no error saving, got: %v", err)
	}

	var got payload
	if err := fs.Load(ctx, "ledger", &got); err != nil {
		t.Fatalf("Expected no error loading, got: %v", err)
	}
	if got.Name != "test" || got.Count != 3 {
		t.Errorf("Expected saved payload back, got: %+v", got)
	}

	exists, err := fs.Exists(ctx, "ledger")
	if err != nil {
		t.Fatalf("Expected no error from Exists, got: %v", err)
	}
	if !exists {
		t.Error("Expected key to exist after save")
	}
}

func TestFileStorage_LoadMissingKey(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error creating storage, got: %v", err)
	}

	var dest map[string]string
	err = fs.Load(context.Background(), "absent", &dest)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got: %v", err)
	}
}

func TestFileStorage_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("Expected no error creating storage, got: %v", err)
	}

	if err := fs.Save(context.Background(), "state", map[string]int{"n": 1}); err != nil {
		t.Fatalf("Expected no error saving, got: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("Expected no temp files after save, found: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Errorf("Expected state.json to exist: %v", err)
	}
}

func TestFileStorage_KeyWithSeparators(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("Expected no error creating storage, got: %v", err)
	}
	ctx := context.Background()

	if err := fs.Save(ctx, "ledger/google", 42); err != nil {
		t.Fatalf("Expected no error saving, got: %v", err)
	}

	var n int
	if err := fs.Load(ctx, "ledger/google", &n); err != nil {
		t.Fatalf("Expected no error loading, got: %v", err)
	}
	if n != 42 {
		t.Errorf("Expected 42, got: %d", n)
	}

	// The file must live directly inside the data dir.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Expected to read data dir, got: %v", err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		t.Errorf("Expected a single flat file in data dir, got: %v", entries)
	}
}
