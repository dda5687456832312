// Package persist mirrors the session and the favorite product ids into a
// durable key-value store. Writes are best effort: failures are logged and
// never surfaced to callers. Reads degrade to absent or empty.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"catalogapp/pkg/domain"
	"catalogapp/pkg/kv"

	"golang.org/x/sync/errgroup"
)

// Storage keys.
const (
	KeyUserToken   = "userToken"
	KeyUserData    = "userData"
	KeyFavoriteIDs = "favoriteProductIds"

	defaultTimeout = 3 * time.Second
)

// Session is a persisted session: both the token and the user are present.
type Session struct {
	Token string
	User  domain.User
}

// Options configures an Adapter.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Adapter reads and writes the storefront's durable state.
type Adapter struct {
	store   kv.Store
	timeout time.Duration
	logger  *slog.Logger
}

// New returns an adapter over store.
func New(store kv.Store, opts Options) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, timeout: timeout, logger: logger.With("component", "persist")}
}

// SaveSession writes the token and the user as JSON.
func (a *Adapter) SaveSession(ctx context.Context, token string, user domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		a.logWriteFailure("save_session", KeyUserData, err)
		return
	}
	a.set(ctx, "save_session", KeyUserToken, token)
	a.set(ctx, "save_session", KeyUserData, string(data))
}

// LoadSession returns the persisted session. A session that lacks either
// part, or whose user cannot be decoded, is absent.
func (a *Adapter) LoadSession(ctx context.Context) (Session, bool) {
	var (
		token, userData string
		tokenOK, userOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		token, tokenOK = a.get(gctx, KeyUserToken)
		return nil
	})
	g.Go(func() error {
		userData, userOK = a.get(gctx, KeyUserData)
		return nil
	})
	_ = g.Wait()

	if !tokenOK || !userOK || strings.TrimSpace(token) == "" {
		return Session{}, false
	}
	var user domain.User
	if err := json.Unmarshal([]byte(userData), &user); err != nil {
		a.logger.Warn("persist_read_invalid", "key", KeyUserData, "error", err)
		return Session{}, false
	}
	if !user.Valid() {
		a.logger.Warn("persist_read_invalid", "key", KeyUserData, "error", "user has no id or username")
		return Session{}, false
	}
	return Session{Token: token, User: user}, true
}

// ClearSession removes both session keys.
func (a *Adapter) ClearSession(ctx context.Context) {
	a.remove(ctx, "clear_session", KeyUserToken)
	a.remove(ctx, "clear_session", KeyUserData)
}

// SaveFavorites writes ids as a JSON integer array. An empty set is written
// as [].
func (a *Adapter) SaveFavorites(ctx context.Context, ids []int64) {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		a.logWriteFailure("save_favorites", KeyFavoriteIDs, err)
		return
	}
	a.set(ctx, "save_favorites", KeyFavoriteIDs, string(data))
}

// LoadFavorites returns the persisted ids in stored order without
// duplicates. Absent or malformed data is an empty set.
func (a *Adapter) LoadFavorites(ctx context.Context) []int64 {
	raw, ok := a.get(ctx, KeyFavoriteIDs)
	if !ok {
		return []int64{}
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		a.logger.Warn("persist_read_invalid", "key", KeyFavoriteIDs, "error", err)
		return []int64{}
	}
	return dedupe(ids)
}

// ClearFavorites removes the favorites key.
func (a *Adapter) ClearFavorites(ctx context.Context) {
	a.remove(ctx, "clear_favorites", KeyFavoriteIDs)
}

func (a *Adapter) get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	value, found, err := a.store.Get(ctx, key)
	if err != nil {
		a.logger.Warn("persist_read_failed", "key", key, "error", err)
		return "", false
	}
	return value, found
}

func (a *Adapter) set(ctx context.Context, op, key, value string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.store.Set(ctx, key, value); err != nil {
		a.logWriteFailure(op, key, err)
	}
}

func (a *Adapter) remove(ctx context.Context, op, key string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.store.Remove(ctx, key); err != nil {
		a.logWriteFailure(op, key, err)
	}
}

func (a *Adapter) logWriteFailure(op, key string, err error) {
	a.logger.Error("persist_write_failed", "operation", op, "key", key, "error", err)
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
