// Package backend wraps the hosted backend-as-a-service that supplies
// authentication and data storage. It exposes one Client interface with
// two implementations: an HTTP client for a configured project, and a
// mock that lets the application run without a real backend.
package backend

import (
	"context"

	"github.com/studyhall/studyhall-go/internal/model"
)

// AuthEvent names an authentication state transition pushed to
// subscribers.
type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// ChangeFunc receives auth state change notifications. The session is
// nil for signed-out events.
type ChangeFunc func(event AuthEvent, session *model.Session)

// AuthResult is the outcome of a sign-up or sign-in call. Session is nil
// when the backend requires email confirmation before issuing tokens.
type AuthResult struct {
	User    *model.User
	Session *model.Session
}

// SignUpCredentials carries a new account registration. Metadata is
// attached to the identity record by the auth server.
type SignUpCredentials struct {
	Email    string
	Password string
	Metadata map[string]string
}

// Client is the capability set the rest of the application depends on.
// The implementation is selected once at startup by configuration and
// never branched on afterwards.
type Client interface {
	Auth() Auth
	Table(name string) Table
	Close() error
}

// Auth covers the authentication operations of the backend.
type Auth interface {
	SignUp(ctx context.Context, creds SignUpCredentials) (AuthResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error)
	SignOut(ctx context.Context) error

	// User resolves the identity behind the current session. It fails
	// with a session-missing error when no session is held.
	User(ctx context.Context) (*model.User, error)

	// Session returns the current session, or (nil, nil) when signed out.
	Session(ctx context.Context) (*model.Session, error)

	ResetPasswordForEmail(ctx context.Context, email string) error

	// OnAuthStateChange registers fn for push notifications and returns
	// an unsubscribe handle.
	OnAuthStateChange(fn ChangeFunc) (unsubscribe func())
}

// Table covers the row operations used against one backend table.
// Cancellation and deadlines propagate through ctx.
type Table interface {
	// SelectSingle fetches the single row where column equals value into
	// dest. A zero-row result fails with a not-found error.
	SelectSingle(ctx context.Context, column, value string, dest any) error

	// SelectLimit fetches at most limit rows into dest, which must be a
	// pointer to a slice.
	SelectLimit(ctx context.Context, limit int, dest any) error

	Insert(ctx context.Context, row any) error

	// UpdateSingle applies patch to the single row where column equals
	// value and stores the updated row into dest.
	UpdateSingle(ctx context.Context, column, value string, patch, dest any) error
}
