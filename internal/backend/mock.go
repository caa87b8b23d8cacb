package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/studyhall/studyhall-go/internal/model"
)

// mockClient stands in when backend credentials are missing or contain
// placeholder values. Every call resolves: auth lookups answer with a
// signed-out state, sign-up and sign-in answer with a not-configured
// error, and table lookups answer with the no-rows condition.
type mockClient struct{}

// NewMockClient returns the mock backend client. Construction never
// fails.
func NewMockClient() Client {
	return mockClient{}
}

func (mockClient) Auth() Auth              { return mockAuth{} }
func (mockClient) Table(name string) Table { return mockTable{} }
func (mockClient) Close() error            { return nil }

func notConfigured() *Error {
	return &Error{Kind: KindNotConfigured, Message: "backend not configured"}
}

type mockAuth struct{}

func (mockAuth) SignUp(ctx context.Context, creds SignUpCredentials) (AuthResult, error) {
	return AuthResult{}, notConfigured()
}

func (mockAuth) SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error) {
	return AuthResult{}, notConfigured()
}

func (mockAuth) SignOut(ctx context.Context) error {
	return nil
}

func (mockAuth) User(ctx context.Context) (*model.User, error) {
	return nil, nil
}

func (mockAuth) Session(ctx context.Context) (*model.Session, error) {
	return nil, nil
}

func (mockAuth) ResetPasswordForEmail(ctx context.Context, email string) error {
	return notConfigured()
}

// OnAuthStateChange invokes fn once, asynchronously, with a signed-out
// event and no session, then never again. The returned unsubscribe
// handle is a no-op.
func (mockAuth) OnAuthStateChange(fn ChangeFunc) func() {
	go func() {
		time.Sleep(10 * time.Millisecond)
		fn(EventSignedOut, nil)
	}()
	return func() {}
}

type mockTable struct{}

func (mockTable) SelectSingle(ctx context.Context, column, value string, dest any) error {
	return &Error{Kind: KindNotFound, Code: "PGRST116", Message: "No rows found"}
}

func (mockTable) SelectLimit(ctx context.Context, limit int, dest any) error {
	return json.Unmarshal([]byte("[]"), dest)
}

func (mockTable) Insert(ctx context.Context, row any) error {
	return notConfigured()
}

func (mockTable) UpdateSingle(ctx context.Context, column, value string, patch, dest any) error {
	return notConfigured()
}
