package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"catalogapp/internal/usertoken"
	"catalogapp/pkg/domain"
	"catalogapp/services/storefront/internal/catalogclient"
)

// Status is the session state machine position.
type Status string

const (
	StatusUnauthenticated      Status = "unauthenticated"
	StatusAuthenticating       Status = "authenticating"
	StatusAuthenticated        Status = "authenticated"
	StatusAuthenticationFailed Status = "authentication_failed"
)

type sessionState struct {
	status    Status
	user      *domain.User
	token     string
	errMsg    string
	expiresAt *time.Time
}

// Session is a read-only snapshot of the session.
type Session struct {
	Status          Status       `json:"status"`
	User            *domain.User `json:"user,omitempty"`
	DisplayName     string       `json:"displayName,omitempty"`
	Token           string       `json:"-"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	Error           string       `json:"error,omitempty"`
	TokenExpiresAt  *time.Time   `json:"tokenExpiresAt,omitempty"`
}

// Session returns the current session snapshot.
func (a *App) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *App) snapshotLocked() Session {
	s := a.session
	snap := Session{
		Status:          s.status,
		Token:           s.token,
		IsAuthenticated: s.status == StatusAuthenticated && s.user != nil && s.token != "",
		IsLoading:       s.status == StatusAuthenticating,
		Error:           s.errMsg,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
		snap.DisplayName = u.DisplayName()
	}
	if s.expiresAt != nil {
		t := *s.expiresAt
		snap.TokenExpiresAt = &t
	}
	return snap
}

// Login authenticates against the catalog. Blank credentials fail with
// ErrMissingCredentials before any request. A rejected login moves the
// session to authentication_failed and returns the catalog error; the
// persisted session is left untouched. When a newer login or a logout
// happens while the request is in flight, the completion is dropped and
// ErrLoginSuperseded is returned.
//
// The remote call is not cancelled by ctx; it is bounded by the client timeout.
func (a *App) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return a.Session(), ErrMissingCredentials
	}

	a.mu.Lock()
	if a.session.status == StatusAuthenticated {
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, ErrAlreadyAuthenticated
	}
	a.attempt++
	attempt := a.attempt
	a.session = sessionState{status: StatusAuthenticating}
	a.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	res, err := a.catalog.Login(ctx, username, password)

	a.mu.Lock()
	defer a.mu.Unlock()
	if attempt != a.attempt {
		a.logger.Info("login_superseded", "attempt", attempt, "latest", a.attempt)
		return a.snapshotLocked(), ErrLoginSuperseded
	}
	if err != nil {
		a.session = sessionState{status: StatusAuthenticationFailed, errMsg: loginFailureMessage(err)}
		a.logger.Warn("login_failed", "username", username, "error", err)
		return a.snapshotLocked(), err
	}

	user := res.User
	a.session = sessionState{
		status:    StatusAuthenticated,
		user:      &user,
		token:     res.Token,
		expiresAt: a.tokenExpiry(res.Token),
	}
	a.persist.SaveSession(ctx, res.Token, user)
	a.logger.Info("login_succeeded", "user_id", user.ID, "username", user.Username)
	return a.snapshotLocked(), nil
}

// Logout clears the session from any state and invalidates an in-flight
// login. Favorites are kept.
func (a *App) Logout(ctx context.Context) Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempt++
	prev := a.session.status
	a.session = sessionState{status: StatusUnauthenticated}
	a.persist.ClearSession(context.WithoutCancel(ctx))
	a.logger.Info("logout", "previous_status", string(prev))
	return a.snapshotLocked()
}

// restoreSession applies a persisted session found by Bootstrap. It is a
// no-op when a login or logout happened since bootstrap started.
func (a *App) restoreSession(token string, user domain.User, startAttempt uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempt != startAttempt || a.session.status != StatusUnauthenticated {
		return false
	}
	a.session = sessionState{
		status:    StatusAuthenticated,
		user:      &user,
		token:     token,
		expiresAt: a.tokenExpiry(token),
	}
	return true
}

func (a *App) tokenExpiry(token string) *time.Time {
	info, err := usertoken.Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return nil
	}
	exp := info.ExpiresAt
	if info.Expired(a.now()) {
		a.logger.Info("session_token_expired", "expires_at", exp)
	}
	return &exp
}

func loginFailureMessage(err error) string {
	var apiErr *catalogclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
	}
	return DefaultLoginFailureMessage
}
