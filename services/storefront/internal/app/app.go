package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"catalogapp/pkg/domain"
	"catalogapp/pkg/persist"
	"catalogapp/services/storefront/internal/catalogclient"
)

// Catalog is the part of the remote catalog the state container drives.
type Catalog interface {
	Login(ctx context.Context, username, password string) (catalogclient.LoginResult, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
}

// Persistence mirrors the session and favorites to durable storage.
type Persistence interface {
	SaveSession(ctx context.Context, token string, user domain.User)
	LoadSession(ctx context.Context) (persist.Session, bool)
	ClearSession(ctx context.Context)
	SaveFavorites(ctx context.Context, ids []int64)
	LoadFavorites(ctx context.Context) []int64
	ClearFavorites(ctx context.Context)
}

// Config holds the collaborators of the state container.
type Config struct {
	Persistence Persistence
	Catalog     Catalog
	Logger      *slog.Logger
	Now         func() time.Time
}

// App is the process-wide state container owning the session and the
// favorites set. Every transition runs under mu, including its storage
// mirror call, so durable writes happen in the same order as the in-memory
// changes. Remote calls run outside the lock.
type App struct {
	mu      sync.Mutex
	persist Persistence
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time

	session sessionState
	// attempt is bumped by every login and logout; a login completion
	// carrying an older number is discarded.
	attempt uint64

	favorites favoriteSet
	// mutations counts favorites changes made through the public API.
	mutations uint64

	bootOnce   sync.Once
	bootResult BootstrapResult
}

// New constructs the state container.
func New(cfg Config) (*App, error) {
	if cfg.Persistence == nil {
		return nil, errors.New("app: persistence is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("app: catalog client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		persist:   cfg.Persistence,
		catalog:   cfg.Catalog,
		logger:    logger.With("component", "state"),
		now:       now,
		session:   sessionState{status: StatusUnauthenticated},
		favorites: newFavoriteSet(),
	}, nil
}

// Token returns the current bearer token, or "" when unauthenticated. It is
// the token source of the catalog client.
func (a *App) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.token
}
