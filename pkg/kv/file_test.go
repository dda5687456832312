package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state", "storefront.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.json")
	ctx := context.Background()

	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := first.Set(ctx, "userData", `{"id":15}`); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, found, err := second.Get(ctx, "userData")
	if err != nil || !found || got != `{"id":15}` {
		t.Fatalf("reopened get: %q found=%v err=%v", got, found, err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the store document, found %d entries", len(entries))
	}
}

func TestFileStoreEmptyAndCorruptDocuments(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if _, err := NewFileStore(empty); err != nil {
		t.Fatalf("empty document should open: %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	if _, err := NewFileStore(corrupt); err == nil {
		t.Fatalf("expected parse error for corrupt document")
	}

	if _, err := NewFileStore("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
