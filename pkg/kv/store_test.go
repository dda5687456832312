package kv

import (
	"context"
	"testing"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "userToken"); err != nil || found {
		t.Fatalf("empty store get: found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "userToken", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "favoriteProductIds", "[1,2]"); err != nil {
		t.Fatalf("set second key: %v", err)
	}
	got, found, err := s.Get(ctx, "userToken")
	if err != nil || !found || got != "abc" {
		t.Fatalf("get after set: %q found=%v err=%v", got, found, err)
	}
	if err := s.Set(ctx, "userToken", "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := s.Get(ctx, "userToken"); got != "def" {
		t.Fatalf("overwrite not visible, got %q", got)
	}
	if err := s.Remove(ctx, "userToken"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, found, _ := s.Get(ctx, "userToken"); found {
		t.Fatalf("key still present after remove")
	}
	if err := s.Remove(ctx, "userToken"); err != nil {
		t.Fatalf("remove absent key should not fail: %v", err)
	}
	if got, found, _ := s.Get(ctx, "favoriteProductIds"); !found || got != "[1,2]" {
		t.Fatalf("unrelated key disturbed: %q found=%v", got, found)
	}
}
