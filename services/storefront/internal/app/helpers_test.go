package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"catalogapp/pkg/domain"
	"catalogapp/pkg/kv"
	"catalogapp/pkg/persist"
	"catalogapp/services/storefront/internal/catalogclient"
)

// recordingStore is a memory store that records writes and can fail or
// block reads per key.
type recordingStore struct {
	*kv.MemoryStore

	mu      sync.Mutex
	writes  []string
	failGet map[string]bool
	gate    map[string]chan struct{}
	entered chan string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemoryStore: kv.NewMemoryStore(),
		failGet:     map[string]bool{},
		gate:        map[string]chan struct{}{},
		entered:     make(chan string, 8),
	}
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	fail, gate := s.failGet[key], s.gate[key]
	s.mu.Unlock()
	if gate != nil {
		s.entered <- key
		<-gate
	}
	if fail {
		return "", false, errors.New("read failed")
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.writes = append(s.writes, "set "+key+"="+value)
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *recordingStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	s.writes = append(s.writes, "remove "+key)
	s.mu.Unlock()
	return s.MemoryStore.Remove(ctx, key)
}

func (s *recordingStore) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	s.writes = nil
	s.mu.Unlock()
}

// fakeCatalog answers logins and product lookups from functions.
type fakeCatalog struct {
	login   func(ctx context.Context, username, password string) (catalogclient.LoginResult, error)
	product func(ctx context.Context, id int64) (domain.Product, error)
	mu      sync.Mutex
	logins  int
}

func (f *fakeCatalog) Login(ctx context.Context, username, password string) (catalogclient.LoginResult, error) {
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()
	if f.login == nil {
		return catalogclient.LoginResult{Token: "tok-" + username, User: domain.User{ID: 1, Username: username}}, nil
	}
	return f.login(ctx, username, password)
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if f.product == nil {
		return domain.Product{ID: id}, nil
	}
	return f.product(ctx, id)
}

func (f *fakeCatalog) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, store kv.Store, catalog Catalog) (*App, *persist.Adapter) {
	t.Helper()
	adapter := persist.New(store, persist.Options{Logger: quietLogger()})
	a, err := New(Config{Persistence: adapter, Catalog: catalog, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, adapter
}
