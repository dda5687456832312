package app

import (
	"context"

	"catalogapp/pkg/persist"

	"golang.org/x/sync/errgroup"
)

// BootstrapResult summarizes what Bootstrap restored.
type BootstrapResult struct {
	RestoredSession   bool `json:"restoredSession"`
	RestoredFavorites int  `json:"restoredFavorites"`
}

// Bootstrap restores the persisted session and favorites. It runs once per
// App; later calls return the first result. The reads run in parallel and a
// failed read only empties its own half. A persisted session is applied
// without remote validation unless a login or logout happened first, and
// persisted favorites are dropped if the set was already changed.
// Nothing is written back to storage.
func (a *App) Bootstrap(ctx context.Context) BootstrapResult {
	a.bootOnce.Do(func() {
		a.bootResult = a.bootstrap(ctx)
	})
	return a.bootResult
}

func (a *App) bootstrap(ctx context.Context) BootstrapResult {
	a.mu.Lock()
	startAttempt, startMutations := a.attempt, a.mutations
	a.mu.Unlock()

	var (
		session    persist.Session
		hasSession bool
		favorites  []int64
	)
	var g errgroup.Group
	g.Go(func() error {
		session, hasSession = a.persist.LoadSession(ctx)
		return nil
	})
	g.Go(func() error {
		favorites = a.persist.LoadFavorites(ctx)
		return nil
	})
	_ = g.Wait()

	var res BootstrapResult
	if hasSession {
		res.RestoredSession = a.restoreSession(session.Token, session.User, startAttempt)
		if !res.RestoredSession {
			a.logger.Info("bootstrap_session_skipped", "reason", "session changed during bootstrap")
		}
	}

	a.mu.Lock()
	if a.mutations == startMutations {
		a.hydrateLocked(favorites)
		res.RestoredFavorites = len(a.favorites.ids)
	} else if len(favorites) > 0 {
		a.logger.Info("bootstrap_favorites_skipped", "reason", "favorites changed during bootstrap", "persisted", len(favorites))
	}
	a.mu.Unlock()

	a.logger.Info("bootstrap_complete",
		"restored_session", res.RestoredSession,
		"restored_favorites", res.RestoredFavorites,
	)
	return res
}
