package model

import "time"

// User is the identity record issued by the authentication backend.
// It exists only while a session exists.
type User struct {
	ID               string            `json:"id"`
	Aud              string            `json:"aud,omitempty"`
	Email            string            `json:"email"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]string `json:"user_metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at,omitempty"`
}

// Session is the credential bundle issued by the backend on sign-in or
// token refresh. ExpiresAt is a unix timestamp, as returned by the token
// endpoint.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns the access token expiry as a time.Time.
func (s *Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the access token expires within d.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	return time.Until(s.Expiry()) <= d
}

// SignUpData represents a sign-up form submission.
type SignUpData struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Grade     string `json:"grade"`
}

// SignInData represents a sign-in form submission.
type SignInData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthState is the read model exposed to the presentation layer.
// Profile is nil whenever User is nil. Error holds the latest
// user-facing failure message, empty when no failure is pending.
type AuthState struct {
	User    *User        `json:"user"`
	Profile *UserProfile `json:"profile"`
	Session *Session     `json:"session"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}
