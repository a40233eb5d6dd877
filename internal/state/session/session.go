// Package session owns the authenticated user and the token pair
package session

import (
	"context"
	"sync"

	"github.com/drallgood/ebook-reader/internal/credentials"
	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Default error messages per intent
const (
	LoginFailed          = "Login failed"
	RegistrationFailed   = "Registration failed"
	RefreshFailed        = "Token refresh failed"
	ProfileUpdateFailed  = "Profile update failed"
	PasswordChangeFailed = "Password change failed"
	PasswordResetFailed  = "Password reset failed"
)

// ErrNoRefreshToken is returned by RefreshSession when no refresh token is held
var ErrNoRefreshToken = &state.ValidationFailure{Field: "refreshToken", Message: "No refresh token available"}

// AccountsAPI is the remote side of the session
type AccountsAPI interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.UpdateUserRequest) (*models.User, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Snapshot is the observable session state.
// IsAuthenticated implies both tokens are set and User is non-nil.
type Snapshot struct {
	User            *models.User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

func (s Snapshot) clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Container serializes session transitions and persists tokens
type Container struct {
	mu      sync.Mutex
	current Snapshot

	accounts AccountsAPI
	store    credentials.Store
	hub      state.Hub[Snapshot]
	requests state.Tracker
	version  state.Version
	logger   *logger.Logger
}

// New creates an anonymous session
func New(accounts AccountsAPI, store credentials.Store, log *logger.Logger) *Container {
	if log == nil {
		log = logger.Component("session")
	}
	return &Container{accounts: accounts, store: store, logger: log}
}

// Snapshot returns a copy of the current state
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

// Subscribe calls fn with every new snapshot until the returned function is called
func (c *Container) Subscribe(fn func(Snapshot)) func() {
	return c.hub.Subscribe(fn)
}

// AccessToken returns the current access token, making the container an
// api.TokenSource.
func (c *Container) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.AccessToken
}

func (c *Container) refreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.RefreshToken
}

// apply runs fn under the lock, then publishes the resulting snapshot
func (c *Container) apply(intent string, phase state.Phase, id state.RequestID, fn func(*Snapshot)) {
	c.mu.Lock()
	fn(&c.current)
	c.version++
	version, snap := c.version, c.current.clone()
	c.mu.Unlock()

	if id != 0 {
		fields := map[string]interface{}{
			"intent":     intent,
			"phase":      phase.String(),
			"request_id": uint64(id),
		}
		if phase != state.Pending && c.requests.Superseded(id) {
			fields["superseded"] = true
		}
		c.logger.Debug("Session transition", fields)
	}
	c.hub.Publish(version, snap)
}
