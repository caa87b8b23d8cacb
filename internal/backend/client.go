package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/studyhall/studyhall-go/internal/crypto"
	"github.com/studyhall/studyhall-go/internal/model"
	"github.com/studyhall/studyhall-go/internal/sessionstore"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultProbeTimeout   = 3 * time.Second
	defaultRefreshMargin  = 30 * time.Second

	maxResponseBytes = 1 << 20 // 1MB
)

// Config configures the HTTP backend client.
type Config struct {
	URL     string
	AnonKey string

	// RequestTimeout bounds every network call. Defaults to 10s.
	RequestTimeout time.Duration

	// ProbeTimeout bounds the best-effort connectivity probe fired at
	// construction. Defaults to 3s.
	ProbeTimeout time.Duration

	// RefreshMargin is how long before access-token expiry a refresh is
	// scheduled. Defaults to 30s.
	RefreshMargin time.Duration

	// Store persists the session across restarts. Nil disables
	// persistence.
	Store sessionstore.Store

	// DisableProbe skips the construction-time connectivity probe.
	DisableProbe bool
}

// remoteClient talks to a hosted project over its auth and table APIs.
// It holds the current session, keeps it fresh with a refresh timer, and
// publishes auth state transitions to subscribers.
type remoteClient struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	store   sessionstore.Store

	probeTimeout  time.Duration
	refreshMargin time.Duration

	bc *broadcaster

	mu           sync.Mutex
	session      *model.Session
	refreshTimer *time.Timer
	pkceVerifier string

	closeOnce sync.Once
}

// NewClient validates the configuration and constructs the HTTP client.
// A malformed project URL fails fast. Construction also restores a
// persisted session, if any, and fires a non-blocking connectivity probe
// whose outcome is only logged.
func NewClient(cfg Config) (Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: must be an absolute http(s) URL", cfg.URL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: unsupported scheme %q", cfg.URL, base.Scheme)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("backend anon key is required")
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = defaultRefreshMargin
	}

	c := &remoteClient{
		baseURL:       base,
		anonKey:       cfg.AnonKey,
		http:          &http.Client{Timeout: cfg.RequestTimeout},
		store:         cfg.Store,
		probeTimeout:  cfg.ProbeTimeout,
		refreshMargin: cfg.RefreshMargin,
		bc:            newBroadcaster(),
	}

	c.restoreSession()

	if !cfg.DisableProbe {
		go c.probe()
	}

	return c, nil
}

func (c *remoteClient) Auth() Auth { return &remoteAuth{c} }

func (c *remoteClient) Table(name string) Table { return &remoteTable{c: c, name: name} }

func (c *remoteClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.refreshTimer != nil {
			c.refreshTimer.Stop()
			c.refreshTimer = nil
		}
		c.mu.Unlock()
		c.bc.close()
	})
	return nil
}

// restoreSession loads a persisted session. A still-valid session is
// adopted directly; an expired one with a refresh token is refreshed in
// the background.
func (c *remoteClient) restoreSession() {
	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := c.store.Load(ctx)
	if err != nil {
		slog.Warn("session restore failed", "error", err)
		return
	}
	if sess == nil || sess.RefreshToken == "" {
		return
	}

	if time.Until(sessionExpiry(sess)) <= c.refreshMargin {
		slog.Info("restored session is stale, refreshing")
		go c.refreshSession(sess.RefreshToken)
		return
	}

	c.setSession(sess, false)
	slog.Info("session restored", "expires_at", sessionExpiry(sess))
}

// currentSession returns a copy of the held session, or nil.
func (c *remoteClient) currentSession() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func (c *remoteClient) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// setSession replaces the held session, reschedules the refresh timer
// and, when persist is set, writes the session through to the store.
// A nil session clears both.
func (c *remoteClient) setSession(sess *model.Session, persist bool) {
	c.mu.Lock()
	c.session = sess
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if sess != nil && sess.RefreshToken != "" {
		d := time.Until(sessionExpiry(sess)) - c.refreshMargin
		if d < time.Second {
			d = time.Second
		}
		token := sess.RefreshToken
		c.refreshTimer = time.AfterFunc(d, func() { c.refreshSession(token) })
	}
	c.mu.Unlock()

	if !persist || c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if sess == nil {
		err = c.store.Clear(ctx)
	} else {
		err = c.store.Save(ctx, sess)
	}
	if err != nil {
		slog.Warn("session persistence failed", "error", err)
	}
}

// sessionExpiry resolves when a session's access token expires. The
// token endpoint reports it directly; sessions persisted by older
// builds may lack the field, in which case it is read from the token's
// own claims.
func sessionExpiry(sess *model.Session) time.Time {
	if sess.ExpiresAt > 0 {
		return sess.Expiry()
	}
	if exp, ok := crypto.TokenExpiry(sess.AccessToken); ok {
		return exp
	}
	return time.Now()
}

// refreshSession exchanges the refresh token for a new session and
// announces the rotation. A transport failure reschedules a retry; any
// other failure means the grant is gone, so the session is dropped.
func (c *remoteClient) refreshSession(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()

	var sess model.Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token",
		url.Values{"grant_type": {"refresh_token"}}, nil,
		map[string]string{"refresh_token": refreshToken}, &sess)
	if err != nil {
		switch KindOf(err) {
		case KindNetwork, KindTimeout:
			slog.Warn("session refresh failed, retrying", "error", err)
			c.mu.Lock()
			c.refreshTimer = time.AfterFunc(10*time.Second, func() { c.refreshSession(refreshToken) })
			c.mu.Unlock()
		default:
			slog.Warn("session refresh rejected, signing out", "error", err)
			c.setSession(nil, true)
			c.bc.emit(emission{event: EventSignedOut, target: broadcast})
		}
		return
	}

	c.setSession(&sess, true)
	c.bc.emit(emission{event: EventTokenRefreshed, session: &sess, target: broadcast})
}

// probe checks connectivity against the profile table shortly after
// construction. Outcomes are logged; failures never block startup.
func (c *remoteClient) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), c.probeTimeout)
	defer cancel()

	var rows []json.RawMessage
	err := c.Table("user_profiles").SelectLimit(ctx, 1, &rows)
	switch {
	case err == nil:
		slog.Info("backend connectivity check passed", "host", c.baseURL.Host)
	case IsKind(err, KindNotFound):
		slog.Info("backend reachable, user_profiles table is empty")
	case IsKind(err, KindTimeout):
		slog.Warn("backend connectivity check timed out", "host", c.baseURL.Host)
	default:
		slog.Warn("backend connectivity check failed", "error", err)
	}
}

// do performs one backend request. body and dest are JSON-encoded and
// -decoded when non-nil. Transport failures and non-2xx responses come
// back as classified *Error values.
func (c *remoteClient) do(ctx context.Context, method, path string, query url.Values, header http.Header, body, dest any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if tok := c.accessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.wrapTransportError(err)
	}

	if resp.StatusCode >= 400 {
		if strings.HasPrefix(path, "/auth/") {
			return classifyAuthError(resp.StatusCode, raw)
		}
		return classifyRestError(resp.StatusCode, raw)
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// wrapTransportError folds timeouts and connection failures into the
// error taxonomy. Caller-initiated cancellation passes through untouched
// so it stays distinguishable from a deadline.
func (c *remoteClient) wrapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{
			Kind:    KindTimeout,
			Message: "connection timeout - please check your internet connection",
		}
	}

	return &Error{
		Kind:    KindNetwork,
		Message: "unable to connect to backend at " + c.baseURL.Host + " - please check your project URL and internet connection",
	}
}
