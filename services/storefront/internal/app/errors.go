package app

import "errors"

var (
	// ErrMissingCredentials indicates a blank username or password; no request is sent.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrAlreadyAuthenticated indicates a login while a session is active.
	ErrAlreadyAuthenticated = errors.New("already authenticated, log out first")
	// ErrLoginSuperseded indicates a login completion that a newer attempt or a logout replaced.
	ErrLoginSuperseded = errors.New("login superseded by a newer action")
)

// DefaultLoginFailureMessage is shown when the catalog gives no reason.
const DefaultLoginFailureMessage = "Login failed. Please try again."
