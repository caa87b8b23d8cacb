package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studyhall/studyhall-go/internal/backend"
	"github.com/studyhall/studyhall-go/internal/model"
	"github.com/studyhall/studyhall-go/internal/service"
)

const testUserID = "1be5cb35-9d20-4751-8ea2-6bb3b390e0d8"

// fakeClient is a scriptable backend.Client. Tests drive push
// notifications through emit and observe data calls through the
// counters.
type fakeClient struct {
	mu          sync.Mutex
	changeFn    backend.ChangeFunc
	userFn      func(ctx context.Context) (*model.User, error)
	sessionFn   func(ctx context.Context) (*model.Session, error)
	signInFn    func(ctx context.Context, email, password string) (backend.AuthResult, error)
	signUpFn    func(ctx context.Context, creds backend.SignUpCredentials) (backend.AuthResult, error)
	signOutFn   func(ctx context.Context) error
	selectFn    func(ctx context.Context, column, value string, dest any) error
	updateFn    func(ctx context.Context, column, value string, patch, dest any) error
	selectCalls int
	updateCalls int
	unsubCalls  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		userFn: func(ctx context.Context) (*model.User, error) {
			return nil, &backend.Error{Kind: backend.KindSessionMissing, Message: "auth session missing"}
		},
		sessionFn: func(ctx context.Context) (*model.Session, error) {
			return &model.Session{AccessToken: "at"}, nil
		},
		selectFn: func(ctx context.Context, column, value string, dest any) error {
			p := dest.(*model.UserProfile)
			p.ID = value
			p.FirstName = "Ada"
			return nil
		},
	}
}

// emit delivers an auth state change the way the real client does, on a
// separate goroutine from the caller.
func (f *fakeClient) emit(event backend.AuthEvent, sess *model.Session) {
	f.mu.Lock()
	fn := f.changeFn
	f.mu.Unlock()
	if fn != nil {
		fn(event, sess)
	}
}

func (f *fakeClient) Auth() backend.Auth         { return (*fakeAuth)(f) }
func (f *fakeClient) Table(string) backend.Table { return (*fakeTable)(f) }
func (f *fakeClient) Close() error               { return nil }

type fakeAuth fakeClient

func (f *fakeAuth) SignUp(ctx context.Context, creds backend.SignUpCredentials) (backend.AuthResult, error) {
	return f.signUpFn(ctx, creds)
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (backend.AuthResult, error) {
	return f.signInFn(ctx, email, password)
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	if f.signOutFn != nil {
		return f.signOutFn(ctx)
	}
	return nil
}

func (f *fakeAuth) User(ctx context.Context) (*model.User, error) {
	return f.userFn(ctx)
}

func (f *fakeAuth) Session(ctx context.Context) (*model.Session, error) {
	return f.sessionFn(ctx)
}

func (f *fakeAuth) ResetPasswordForEmail(ctx context.Context, email string) error {
	return nil
}

func (f *fakeAuth) OnAuthStateChange(fn backend.ChangeFunc) func() {
	f.mu.Lock()
	f.changeFn = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.changeFn = nil
		f.unsubCalls++
		f.mu.Unlock()
	}
}

type fakeTable fakeClient

func (f *fakeTable) SelectSingle(ctx context.Context, column, value string, dest any) error {
	f.mu.Lock()
	f.selectCalls++
	f.mu.Unlock()
	return f.selectFn(ctx, column, value, dest)
}

func (f *fakeTable) SelectLimit(ctx context.Context, limit int, dest any) error { return nil }

func (f *fakeTable) Insert(ctx context.Context, row any) error { return nil }

func (f *fakeTable) UpdateSingle(ctx context.Context, column, value string, patch, dest any) error {
	f.mu.Lock()
	f.updateCalls++
	f.mu.Unlock()
	return f.updateFn(ctx, column, value, patch, dest)
}

func (f *fakeClient) selectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectCalls
}

func testSession() *model.Session {
	return &model.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &model.User{ID: testUserID, Email: "student@example.com"},
	}
}

func newCoordinator(t *testing.T, fc *fakeClient, timeout time.Duration) *Coordinator {
	t.Helper()
	c := New(service.NewAuthService(fc), timeout)
	t.Cleanup(c.Close)
	return c
}

// waitState polls until the snapshot satisfies cond or the deadline
// passes.
func waitState(t *testing.T, c *Coordinator, desc string, cond func(model.AuthState) bool) model.AuthState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s := c.State()
		if cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state: %s (last: %+v)", desc, c.State())
	return model.AuthState{}
}

func TestStartsLoading(t *testing.T) {
	c := newCoordinator(t, newFakeClient(), time.Second)

	if s := c.State(); !s.Loading {
		t.Error("state should start loading")
	}
}

func TestBootstrapUnauthenticated(t *testing.T) {
	c := newCoordinator(t, newFakeClient(), time.Second)
	c.Start()

	s := waitState(t, c, "loading cleared", func(s model.AuthState) bool { return !s.Loading })
	if s.User != nil || s.Profile != nil || s.Error != "" {
		t.Errorf("unauthenticated bootstrap state = %+v", s)
	}
}

func TestBootstrapResolvesUserAndProfile(t *testing.T) {
	fc := newFakeClient()
	fc.userFn = func(ctx context.Context) (*model.User, error) {
		return &model.User{ID: testUserID, Email: "student@example.com"}, nil
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	s := waitState(t, c, "user and profile resolved", func(s model.AuthState) bool {
		return s.User != nil && s.Profile != nil
	})
	if s.Loading || s.Error != "" {
		t.Errorf("state = %+v", s)
	}
	if s.Profile.FirstName != "Ada" {
		t.Errorf("profile = %+v", s.Profile)
	}
}

func TestBootstrapTimeoutIsSilent(t *testing.T) {
	fc := newFakeClient()
	fc.userFn = func(ctx context.Context) (*model.User, error) {
		<-ctx.Done()
		return nil, &backend.Error{Kind: backend.KindTimeout, Message: "connection timeout"}
	}

	c := newCoordinator(t, fc, 50*time.Millisecond)
	c.Start()

	s := waitState(t, c, "loading cleared", func(s model.AuthState) bool { return !s.Loading })
	if s.User != nil || s.Error != "" {
		t.Errorf("a bootstrap timeout should settle silently, state = %+v", s)
	}
}

func TestPushEventWinsOverStaleBootstrap(t *testing.T) {
	release := make(chan struct{})
	fc := newFakeClient()
	fc.userFn = func(ctx context.Context) (*model.User, error) {
		<-release
		return nil, &backend.Error{Kind: backend.KindSessionMissing}
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "push event applied", func(s model.AuthState) bool {
		return s.User != nil && s.Profile != nil
	})

	close(release)
	time.Sleep(100 * time.Millisecond)

	s := c.State()
	if s.User == nil || s.User.ID != testUserID {
		t.Errorf("stale bootstrap overwrote the pushed user, state = %+v", s)
	}
	if s.Profile == nil || s.Loading {
		t.Errorf("state = %+v", s)
	}
}

func TestSignInFailureSurfacesError(t *testing.T) {
	fc := newFakeClient()
	fc.signInFn = func(ctx context.Context, email, password string) (backend.AuthResult, error) {
		return backend.AuthResult{}, &backend.Error{Kind: backend.KindInvalidCredentials}
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	err := c.SignIn(context.Background(), model.SignInData{Email: "a@b.co", Password: "wrong"})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want ErrInvalidCredentials", err)
	}

	s := c.State()
	if s.Loading {
		t.Error("loading should be cleared after a failed sign-in")
	}
	if s.Error != service.ErrInvalidCredentials.Error() {
		t.Errorf("error message = %q", s.Error)
	}
}

func TestSignInSuccessLeavesLoadingUntilPush(t *testing.T) {
	fc := newFakeClient()
	fc.signInFn = func(ctx context.Context, email, password string) (backend.AuthResult, error) {
		sess := testSession()
		return backend.AuthResult{User: sess.User, Session: sess}, nil
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	if err := c.SignIn(context.Background(), model.SignInData{Email: "a@b.co", Password: "pw"}); err != nil {
		t.Fatalf("SignIn() unexpected error: %v", err)
	}
	if s := c.State(); !s.Loading {
		t.Error("loading should stay set until the auth change event lands")
	}

	fc.emit(backend.EventSignedIn, testSession())
	s := waitState(t, c, "signed-in state applied", func(s model.AuthState) bool {
		return !s.Loading && s.User != nil && s.Profile != nil
	})
	if s.Session == nil || s.Error != "" {
		t.Errorf("state = %+v", s)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	fc := newFakeClient()
	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "signed in", func(s model.AuthState) bool { return s.User != nil && s.Profile != nil })

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() unexpected error: %v", err)
	}

	s := c.State()
	if s.User != nil || s.Profile != nil || s.Session != nil || s.Loading || s.Error != "" {
		t.Errorf("post sign-out state = %+v", s)
	}
}

func TestSignOutClearsStateEvenOnBackendFailure(t *testing.T) {
	fc := newFakeClient()
	fc.signOutFn = func(ctx context.Context) error {
		return &backend.Error{Kind: backend.KindNetwork, Message: "unable to connect"}
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "signed in", func(s model.AuthState) bool { return s.User != nil })

	err := c.SignOut(context.Background())
	if err == nil {
		t.Fatal("SignOut() should report the backend failure")
	}

	s := c.State()
	if s.User != nil || s.Profile != nil || s.Session != nil || s.Loading {
		t.Errorf("local state must clear regardless of the backend answer, state = %+v", s)
	}
	if s.Error == "" {
		t.Error("the failure message should be surfaced")
	}
}

func TestUserWithoutProfile(t *testing.T) {
	fc := newFakeClient()
	fc.selectFn = func(ctx context.Context, column, value string, dest any) error {
		return &backend.Error{Kind: backend.KindNotFound, Code: "PGRST116", Message: "No rows found"}
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	s := waitState(t, c, "signed in without profile", func(s model.AuthState) bool {
		return s.User != nil && !s.Loading && fc.selectCount() > 0
	})
	if s.Profile != nil {
		t.Errorf("profile = %+v, want nil", s.Profile)
	}
	if s.Error != "" {
		t.Errorf("a missing profile is not an error, got %q", s.Error)
	}
}

func TestProfileLoadFailureSurfacesMessage(t *testing.T) {
	fc := newFakeClient()
	fc.selectFn = func(ctx context.Context, column, value string, dest any) error {
		return &backend.Error{Kind: backend.KindNetwork, Message: "unreachable"}
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	s := waitState(t, c, "profile failure surfaced", func(s model.AuthState) bool {
		return s.User != nil && s.Error != ""
	})
	if s.Profile != nil {
		t.Errorf("profile = %+v, want nil after a failed load", s.Profile)
	}
	if s.Error != service.ErrConnection.Error() {
		t.Errorf("error message = %q", s.Error)
	}
	if s.Loading {
		t.Error("a profile failure must not reopen the loading state")
	}
}

func TestOneProfileLoadPerEvent(t *testing.T) {
	fc := newFakeClient()
	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "profile loaded", func(s model.AuthState) bool { return s.Profile != nil })

	fc.emit(backend.EventTokenRefreshed, testSession())
	waitState(t, c, "second load done", func(s model.AuthState) bool { return fc.selectCount() == 2 })

	time.Sleep(50 * time.Millisecond)
	if got := fc.selectCount(); got != 2 {
		t.Errorf("profile loads = %d, want exactly one per event", got)
	}
}

func TestUpdateProfileRequiresUser(t *testing.T) {
	fc := newFakeClient()
	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	first := "Grace"
	err := c.UpdateProfile(context.Background(), model.ProfileUpdate{FirstName: &first})
	if !errors.Is(err, ErrNoUser) {
		t.Fatalf("UpdateProfile() error = %v, want ErrNoUser", err)
	}
	if fc.updateCalls != 0 {
		t.Error("no backend call should be made while signed out")
	}
}

func TestUpdateProfileReplacesCachedProfile(t *testing.T) {
	fc := newFakeClient()
	fc.updateFn = func(ctx context.Context, column, value string, patch, dest any) error {
		p := dest.(*model.UserProfile)
		p.ID = value
		p.FirstName = "Grace"
		return nil
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "signed in", func(s model.AuthState) bool { return s.Profile != nil })

	first := "Grace"
	if err := c.UpdateProfile(context.Background(), model.ProfileUpdate{FirstName: &first}); err != nil {
		t.Fatalf("UpdateProfile() unexpected error: %v", err)
	}

	if s := c.State(); s.Profile == nil || s.Profile.FirstName != "Grace" {
		t.Errorf("cached profile = %+v", s.Profile)
	}
}

func TestRetryProfileLoad(t *testing.T) {
	fc := newFakeClient()
	fail := true
	fc.selectFn = func(ctx context.Context, column, value string, dest any) error {
		if fail {
			return &backend.Error{Kind: backend.KindNetwork, Message: "unreachable"}
		}
		p := dest.(*model.UserProfile)
		p.ID = value
		p.FirstName = "Ada"
		return nil
	}

	c := newCoordinator(t, fc, time.Second)
	c.Start()

	fc.emit(backend.EventSignedIn, testSession())
	waitState(t, c, "failure surfaced", func(s model.AuthState) bool { return s.Error != "" })

	fail = false
	c.RetryProfileLoad(context.Background())

	s := c.State()
	if s.Profile == nil || s.Profile.FirstName != "Ada" {
		t.Errorf("profile after retry = %+v", s.Profile)
	}
	if s.Error != "" {
		t.Errorf("error should clear on a successful retry, got %q", s.Error)
	}
}

func TestRetryProfileLoadNoopWhileSignedOut(t *testing.T) {
	fc := newFakeClient()
	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	c.RetryProfileLoad(context.Background())
	if fc.selectCount() != 0 {
		t.Error("retry while signed out should not hit the backend")
	}
}

func TestEventsIgnoredAfterClose(t *testing.T) {
	fc := newFakeClient()
	c := newCoordinator(t, fc, time.Second)
	c.Start()
	waitState(t, c, "bootstrap settled", func(s model.AuthState) bool { return !s.Loading })

	c.Close()
	if fc.unsubCalls != 1 {
		t.Errorf("unsubscribe calls = %d, want 1", fc.unsubCalls)
	}

	// The subscription is gone, but even a callback already in flight
	// must not apply after Close.
	c.handleAuthChange(backend.EventSignedIn, testSession())

	if s := c.State(); s.User != nil || s.Session != nil {
		t.Errorf("state mutated after Close: %+v", s)
	}
}
