package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-go/internal/backend"
	"github.com/studyhall/studyhall-go/internal/model"
)

// User-facing failure messages. Each classified backend failure maps to
// exactly one of these; unclassified failures pass the backend message
// through.
var (
	ErrEmailTaken         = errors.New("an account with this email already exists, please sign in instead")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrInvalidEmail       = errors.New("please enter a valid email address")
	ErrInvalidCredentials = errors.New("invalid email or password, please check your credentials and try again")
	ErrEmailNotConfirmed  = errors.New("please check your email and click the confirmation link before signing in")
	ErrTooManyAttempts    = errors.New("too many login attempts, please wait a few minutes before trying again")
	ErrNoSession          = errors.New("no active session, please sign in")
	ErrSessionExpired     = errors.New("authentication session expired, please sign in again")
	ErrConnection         = errors.New("unable to connect to the database, please check your internet connection and try again")
	ErrRequestTimeout     = errors.New("request timed out, please check your internet connection and try again")
	ErrInvalidUserID      = errors.New("invalid user id")
)

const (
	profilesTable         = "user_profiles"
	profileRequestTimeout = 10 * time.Second
)

// AuthService issues session and profile operations against the backend
// client and normalizes its failures into user-facing errors. It holds
// no state of its own.
type AuthService struct {
	client backend.Client
}

// NewAuthService creates a new AuthService over the given backend.
func NewAuthService(client backend.Client) *AuthService {
	return &AuthService{client: client}
}

// SignUp creates a new account and best-effort creates the matching
// profile row. A profile insert failure is logged and swallowed; the
// user can complete the profile later.
func (s *AuthService) SignUp(ctx context.Context, data model.SignUpData) (backend.AuthResult, error) {
	res, err := s.client.Auth().SignUp(ctx, backend.SignUpCredentials{
		Email:    data.Email,
		Password: data.Password,
		Metadata: map[string]string{
			"first_name": data.FirstName,
			"last_name":  data.LastName,
			"grade":      data.Grade,
		},
	})
	if err != nil {
		return backend.AuthResult{}, classifySignUpError(err)
	}

	if res.User != nil {
		row := model.NewProfileRow{
			ID:        res.User.ID,
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Grade:     data.Grade,
		}
		if ierr := s.client.Table(profilesTable).Insert(ctx, row); ierr != nil {
			if !backend.IsKind(ierr, backend.KindConflict) {
				slog.Warn("profile creation failed, user can complete it later", "user_id", res.User.ID, "error", ierr)
			}
		}
	}

	return res, nil
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, data model.SignInData) (backend.AuthResult, error) {
	res, err := s.client.Auth().SignInWithPassword(ctx, data.Email, data.Password)
	if err != nil {
		return backend.AuthResult{}, classifySignInError(err)
	}
	return res, nil
}

// SignOut clears the backend session.
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.client.Auth().SignOut(ctx)
}

// CurrentUser resolves the identity behind the current session. It never
// fails: a missing session and every other backend failure yield nil so
// callers are never blocked on an error path.
func (s *AuthService) CurrentUser(ctx context.Context) *model.User {
	user, err := s.client.Auth().User(ctx)
	if err != nil {
		if !backend.IsKind(err, backend.KindSessionMissing) {
			slog.Warn("current user lookup failed", "error", err)
		}
		return nil
	}
	return user
}

// Profile fetches the profile row for userID, or (nil, nil) when none
// exists yet; a new user without a profile is not an error. The lookup
// requires an active session and runs under a bounded deadline.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if uuid.Validate(userID) != nil {
		return nil, ErrInvalidUserID
	}

	sess, err := s.client.Auth().Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, profileRequestTimeout)
	defer cancel()

	var profile model.UserProfile
	if err := s.client.Table(profilesTable).SelectSingle(ctx, "id", userID, &profile); err != nil {
		switch backend.KindOf(err) {
		case backend.KindNotFound:
			return nil, nil
		case backend.KindTimeout:
			return nil, ErrRequestTimeout
		case backend.KindNetwork:
			return nil, ErrConnection
		case backend.KindSessionMissing:
			return nil, ErrSessionExpired
		default:
			return nil, fmt.Errorf("database error: %w", err)
		}
	}
	return &profile, nil
}

// UpdateProfile applies a partial update and returns the updated row.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, updates model.ProfileUpdate) (*model.UserProfile, error) {
	var profile model.UserProfile
	if err := s.client.Table(profilesTable).UpdateSingle(ctx, "id", userID, updates, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ResetPassword triggers the backend password recovery email.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	if err := s.client.Auth().ResetPasswordForEmail(ctx, email); err != nil {
		if backend.IsKind(err, backend.KindValidation) {
			return ErrInvalidEmail
		}
		return err
	}
	return nil
}

// OnAuthStateChange registers fn for backend auth state transitions and
// returns an unsubscribe handle.
func (s *AuthService) OnAuthStateChange(fn backend.ChangeFunc) func() {
	return s.client.Auth().OnAuthStateChange(fn)
}

func classifySignUpError(err error) error {
	switch backend.KindOf(err) {
	case backend.KindConflict:
		return ErrEmailTaken
	case backend.KindValidation:
		if backend.CodeOf(err) == "weak_password" {
			return ErrPasswordTooShort
		}
		return ErrInvalidEmail
	case backend.KindRateLimited:
		return ErrTooManyAttempts
	default:
		return err
	}
}

func classifySignInError(err error) error {
	switch backend.KindOf(err) {
	case backend.KindInvalidCredentials:
		return ErrInvalidCredentials
	case backend.KindEmailNotConfirmed:
		return ErrEmailNotConfirmed
	case backend.KindRateLimited:
		return ErrTooManyAttempts
	default:
		return err
	}
}
