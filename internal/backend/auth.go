package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/studyhall/studyhall-go/internal/model"
)

// remoteAuth implements Auth against the project's auth API.
type remoteAuth struct {
	c *remoteClient
}

// SignUp registers a new account. Depending on the project's email
// confirmation setting the auth server answers with either a bare user
// record or a full session; both shapes are handled. When a session is
// issued it is adopted and a signed-in event is published.
func (a *remoteAuth) SignUp(ctx context.Context, creds SignUpCredentials) (AuthResult, error) {
	body := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	}
	if len(creds.Metadata) > 0 {
		body["data"] = creds.Metadata
	}

	var raw json.RawMessage
	if err := a.c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, nil, body, &raw); err != nil {
		return AuthResult{}, err
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err == nil && sess.AccessToken != "" {
		a.c.setSession(&sess, true)
		a.c.bc.emit(emission{event: EventSignedIn, session: &sess, target: broadcast})
		return AuthResult{User: sess.User, Session: &sess}, nil
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return AuthResult{}, &Error{Kind: KindGeneric, Message: "unexpected sign-up response from auth server"}
	}
	return AuthResult{User: &user}, nil
}

func (a *remoteAuth) SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error) {
	var sess model.Session
	err := a.c.do(ctx, http.MethodPost, "/auth/v1/token",
		url.Values{"grant_type": {"password"}}, nil,
		map[string]string{"email": email, "password": password}, &sess)
	if err != nil {
		return AuthResult{}, err
	}

	a.c.setSession(&sess, true)
	a.c.bc.emit(emission{event: EventSignedIn, session: &sess, target: broadcast})
	return AuthResult{User: sess.User, Session: &sess}, nil
}

// SignOut revokes the session server-side and always drops it locally,
// publishing a signed-out event. A revocation failure other than an
// already-gone session is reported to the caller.
func (a *remoteAuth) SignOut(ctx context.Context) error {
	var callErr error
	if a.c.accessToken() != "" {
		callErr = a.c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
	}

	a.c.setSession(nil, true)
	a.c.bc.emit(emission{event: EventSignedOut, target: broadcast})

	if callErr != nil && !IsKind(callErr, KindSessionMissing) {
		return callErr
	}
	return nil
}

func (a *remoteAuth) User(ctx context.Context) (*model.User, error) {
	if a.c.accessToken() == "" {
		return nil, &Error{Kind: KindSessionMissing, Message: "auth session missing"}
	}

	var user model.User
	if err := a.c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *remoteAuth) Session(ctx context.Context) (*model.Session, error) {
	return a.c.currentSession(), nil
}

// ResetPasswordForEmail triggers the recovery email. The request carries
// an S256 code challenge; the verifier is retained for the follow-up
// code exchange performed by the web redirect handler.
func (a *remoteAuth) ResetPasswordForEmail(ctx context.Context, email string) error {
	verifier, err := GenerateVerifier()
	if err != nil {
		return err
	}

	body := map[string]string{
		"email":                 email,
		"code_challenge":        Challenge(verifier),
		"code_challenge_method": "s256",
	}
	if err := a.c.do(ctx, http.MethodPost, "/auth/v1/recover", nil, nil, body, nil); err != nil {
		return err
	}

	a.c.mu.Lock()
	a.c.pkceVerifier = verifier
	a.c.mu.Unlock()

	slog.Info("password recovery email requested", "email", email)
	return nil
}

// OnAuthStateChange registers fn and asynchronously replays the current
// session to it as an initial-session event, so late subscribers settle
// without waiting for the next transition.
func (a *remoteAuth) OnAuthStateChange(fn ChangeFunc) func() {
	id, unsubscribe := a.c.bc.subscribe(fn)
	a.c.bc.emit(emission{event: EventInitialSession, session: a.c.currentSession(), target: id})
	return unsubscribe
}
