package app

import (
	"context"

	"catalogapp/pkg/domain"
	"catalogapp/services/storefront/internal/catalogclient"

	"golang.org/x/sync/errgroup"
)

const favoriteFetchLimit = 4

// favoriteSet is an insertion-ordered set of product ids.
type favoriteSet struct {
	ids   []int64
	index map[int64]struct{}
}

func newFavoriteSet() favoriteSet {
	return favoriteSet{ids: []int64{}, index: map[int64]struct{}{}}
}

func (s *favoriteSet) has(id int64) bool {
	_, ok := s.index[id]
	return ok
}

func (s *favoriteSet) add(id int64) {
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
}

func (s *favoriteSet) remove(id int64) {
	delete(s.index, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

func (s *favoriteSet) list() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// ToggleFavorite flips membership of id, persists the full set and reports
// whether id is now a favorite.
func (a *App) ToggleFavorite(ctx context.Context, id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := !a.favorites.has(id)
	if now {
		a.favorites.add(id)
	} else {
		a.favorites.remove(id)
	}
	a.mutations++
	a.persist.SaveFavorites(context.WithoutCancel(ctx), a.favorites.list())
	return now
}

// AddFavorite inserts id; adding a present id changes and writes nothing.
func (a *App) AddFavorite(ctx context.Context, id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.favorites.has(id) {
		return
	}
	a.favorites.add(id)
	a.mutations++
	a.persist.SaveFavorites(context.WithoutCancel(ctx), a.favorites.list())
}

// RemoveFavorite deletes id; removing an absent id changes and writes nothing.
func (a *App) RemoveFavorite(ctx context.Context, id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.favorites.has(id) {
		return
	}
	a.favorites.remove(id)
	a.mutations++
	a.persist.SaveFavorites(context.WithoutCancel(ctx), a.favorites.list())
}

// ClearFavorites empties the set and removes the stored key.
func (a *App) ClearFavorites(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.favorites = newFavoriteSet()
	a.mutations++
	a.persist.ClearFavorites(context.WithoutCancel(ctx))
}

// HydrateFavorites replaces the set with ids without persisting.
// Duplicates keep their first position.
func (a *App) HydrateFavorites(ids []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hydrateLocked(ids)
}

func (a *App) hydrateLocked(ids []int64) {
	set := newFavoriteSet()
	for _, id := range ids {
		if !set.has(id) {
			set.add(id)
		}
	}
	a.favorites = set
}

// IsFavorite reports membership of id.
func (a *App) IsFavorite(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.favorites.has(id)
}

// Favorites returns the favorite ids in insertion order.
func (a *App) Favorites() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.favorites.list()
}

// FavoriteProducts resolves the favorites through the catalog, preserving
// favorite order. Ids the catalog no longer knows are skipped; any other
// error aborts.
func (a *App) FavoriteProducts(ctx context.Context) ([]domain.Product, error) {
	ids := a.Favorites()
	found := make([]*domain.Product, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(favoriteFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			p, err := a.catalog.GetProduct(gctx, id)
			if catalogclient.IsNotFound(err) {
				a.logger.Info("favorite_product_missing", "product_id", id)
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(ids))
	for _, p := range found {
		if p != nil {
			products = append(products, *p)
		}
	}
	return products, nil
}
