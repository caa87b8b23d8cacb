// Package coordinator maintains the process-wide authentication state
// consumed by the presentation layer: the current user, profile and
// session, a loading flag, and the latest user-facing error. The state
// is populated once at startup and then kept in sync by the backend's
// auth state change subscription, which is the single source of truth
// after initialization.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/studyhall/studyhall-go/internal/backend"
	"github.com/studyhall/studyhall-go/internal/model"
	"github.com/studyhall/studyhall-go/internal/service"
)

// ErrNoUser is returned by profile actions invoked while signed out.
var ErrNoUser = errors.New("no user logged in")

const defaultBootstrapTimeout = 5 * time.Second

// Coordinator owns the auth state container. It is constructed at the
// application root and passed to consumers; Close cancels its internal
// lifetime, which mechanically prevents any late asynchronous callback
// from mutating state after teardown.
type Coordinator struct {
	svc *service.AuthService

	ctx    context.Context
	cancel context.CancelFunc

	bootstrapTimeout time.Duration

	mu       sync.Mutex
	user     *model.User
	profile  *model.UserProfile
	session  *model.Session
	loading  bool
	errMsg   string
	pushSeen bool

	unsubscribe func()
	notify      chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

// New creates a Coordinator over svc. bootstrapTimeout bounds the
// initial session resolution; zero selects the 5s default.
func New(svc *service.AuthService, bootstrapTimeout time.Duration) *Coordinator {
	if bootstrapTimeout <= 0 {
		bootstrapTimeout = defaultBootstrapTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		svc:              svc,
		ctx:              ctx,
		cancel:           cancel,
		bootstrapTimeout: bootstrapTimeout,
		loading:          true,
		notify:           make(chan struct{}, 1),
	}
}

// Start subscribes to backend auth state changes and begins resolving
// the initial session in the background.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		c.unsubscribe = c.svc.OnAuthStateChange(c.handleAuthChange)
		go c.bootstrap()
	})
}

// Close tears the coordinator down: the subscription is released and the
// internal lifetime cancelled so pending callbacks can no longer apply.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
	})
}

// State returns a snapshot of the current auth state.
func (c *Coordinator) State() model.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.AuthState{
		User:    c.user,
		Profile: c.profile,
		Session: c.session,
		Loading: c.loading,
		Error:   c.errMsg,
	}
}

// Watch returns a channel that receives a coalesced signal after each
// state change.
func (c *Coordinator) Watch() <-chan struct{} {
	return c.notify
}

// apply runs mutate under the state lock, unless the coordinator has
// been closed. It reports whether the mutation was applied.
func (c *Coordinator) apply(mutate func()) bool {
	if c.ctx.Err() != nil {
		return false
	}
	c.mu.Lock()
	mutate()
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// bootstrap resolves the current user within the bootstrap timeout.
// Timing out is not an error: the state settles unauthenticated and the
// first paint proceeds. A push event that lands before the bootstrap
// result wins; the stale result only clears the loading flag.
func (c *Coordinator) bootstrap() {
	ctx, cancel := context.WithTimeout(c.ctx, c.bootstrapTimeout)
	defer cancel()

	user := c.svc.CurrentUser(ctx)

	stale := false
	applied := c.apply(func() {
		c.loading = false
		if c.pushSeen {
			stale = true
			return
		}
		c.user = user
		if user == nil {
			c.profile = nil
		}
	})
	if !applied || stale {
		return
	}

	if user != nil {
		c.loadProfile(user.ID)
	}
}

// handleAuthChange is the subscription callback. Every event clears the
// pending error, replaces the session, derives the user from it and
// drops the loading flag; a session with a user schedules exactly one
// background profile reload.
func (c *Coordinator) handleAuthChange(event backend.AuthEvent, session *model.Session) {
	var user *model.User
	if session != nil {
		user = session.User
	}

	applied := c.apply(func() {
		c.pushSeen = true
		c.errMsg = ""
		c.session = session
		c.user = user
		c.loading = false
		if user == nil {
			c.profile = nil
		}
	})
	if !applied {
		return
	}

	slog.Debug("auth state change", "event", event, "authenticated", user != nil)

	if user != nil {
		go c.loadProfile(user.ID)
	}
}

// loadProfile fetches the profile for userID and stores the result. A
// missing profile is a valid state and leaves no error behind; any
// other failure surfaces its message without reopening the loading
// state.
func (c *Coordinator) loadProfile(userID string) {
	c.apply(func() { c.errMsg = "" })

	profile, err := c.svc.Profile(c.ctx, userID)
	if err != nil {
		slog.Warn("profile load failed", "user_id", userID, "error", err)
		c.apply(func() {
			c.profile = nil
			c.errMsg = err.Error()
		})
		return
	}

	c.apply(func() { c.profile = profile })
}

// SignUp registers a new account. On success the loading flag stays set:
// the auth state change event that follows is responsible for clearing
// it, so two independent completions never fight over the state.
func (c *Coordinator) SignUp(ctx context.Context, data model.SignUpData) error {
	c.apply(func() {
		c.loading = true
		c.errMsg = ""
	})

	if _, err := c.svc.SignUp(ctx, data); err != nil {
		c.apply(func() {
			c.loading = false
			c.errMsg = err.Error()
		})
		return err
	}
	return nil
}

// SignIn authenticates. The same loading handoff as SignUp applies.
func (c *Coordinator) SignIn(ctx context.Context, data model.SignInData) error {
	c.apply(func() {
		c.loading = true
		c.errMsg = ""
	})

	if _, err := c.svc.SignIn(ctx, data); err != nil {
		c.apply(func() {
			c.loading = false
			c.errMsg = err.Error()
		})
		return err
	}
	return nil
}

// SignOut clears the backend session. Whatever the backend answers, the
// local user, profile and session are cleared and loading ends.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.apply(func() {
		c.loading = true
		c.errMsg = ""
	})

	err := c.svc.SignOut(ctx)

	c.apply(func() {
		c.user = nil
		c.profile = nil
		c.session = nil
		c.loading = false
		if err != nil {
			c.errMsg = err.Error()
		}
	})
	return err
}

// UpdateProfile applies a partial profile update for the signed-in user
// and replaces the cached profile with the returned row. It fails
// immediately when no user is authenticated and never touches the
// loading flag.
func (c *Coordinator) UpdateProfile(ctx context.Context, updates model.ProfileUpdate) error {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return ErrNoUser
	}

	c.apply(func() { c.errMsg = "" })

	profile, err := c.svc.UpdateProfile(ctx, user.ID, updates)
	if err != nil {
		c.apply(func() { c.errMsg = err.Error() })
		return err
	}

	c.apply(func() { c.profile = profile })
	return nil
}

// RetryProfileLoad repeats the profile load used during initialization
// and push updates. It is a no-op while signed out.
func (c *Coordinator) RetryProfileLoad(ctx context.Context) {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return
	}
	c.loadProfile(user.ID)
}
