package session

import (
	"context"
	"fmt"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/credentials"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Intent is one of the operations the session accepts
type Intent interface {
	sessionIntent()
}

type (
	Login          struct{ Credentials models.LoginRequest }
	Register       struct{ Request models.RegisterRequest }
	Logout         struct{}
	RefreshSession struct{}
	UpdateProfile  struct{ Partial models.UpdateUserRequest }
	// UpdateUser merges fields into the local user without a network call
	UpdateUser      struct{ Partial models.UserPatch }
	LoadFromStorage struct{}
	ChangePassword  struct{ Current, New string }
	ForgotPassword  struct{ Email string }
	ResetPassword   struct{ Token, NewPassword string }
	ClearError      struct{}
)

func (Login) sessionIntent()           {}
func (Register) sessionIntent()        {}
func (Logout) sessionIntent()          {}
func (RefreshSession) sessionIntent()  {}
func (UpdateProfile) sessionIntent()   {}
func (UpdateUser) sessionIntent()      {}
func (LoadFromStorage) sessionIntent() {}
func (ChangePassword) sessionIntent()  {}
func (ForgotPassword) sessionIntent()  {}
func (ResetPassword) sessionIntent()   {}
func (ClearError) sessionIntent()      {}

// Dispatch runs intent to completion. The snapshot is already updated when
// Dispatch returns; the error is informational.
func (c *Container) Dispatch(ctx context.Context, intent Intent) error {
	switch in := intent.(type) {
	case Login:
		return c.login(ctx, in)
	case Register:
		return c.register(ctx, in)
	case Logout:
		return c.logout(ctx)
	case RefreshSession:
		return c.refresh(ctx)
	case UpdateProfile:
		return c.updateProfile(ctx, in)
	case UpdateUser:
		c.apply("updateUser", state.Fulfilled, 0, func(s *Snapshot) {
			if s.User != nil {
				merged := s.User.Merge(in.Partial)
				s.User = &merged
			}
		})
		return nil
	case LoadFromStorage:
		return c.loadFromStorage(ctx)
	case ChangePassword:
		return c.simple(ctx, "changePassword", PasswordChangeFailed, func(ctx context.Context) error {
			return c.accounts.ChangePassword(ctx, in.Current, in.New)
		})
	case ForgotPassword:
		return c.simple(ctx, "forgotPassword", PasswordResetFailed, func(ctx context.Context) error {
			return c.accounts.ForgotPassword(ctx, in.Email)
		})
	case ResetPassword:
		return c.simple(ctx, "resetPassword", PasswordResetFailed, func(ctx context.Context) error {
			return c.accounts.ResetPassword(ctx, in.Token, in.NewPassword)
		})
	case ClearError:
		c.apply("clearError", state.Fulfilled, 0, func(s *Snapshot) { s.Error = "" })
		return nil
	default:
		return fmt.Errorf("session: unsupported intent %T", intent)
	}
}

// Login signs in with creds and persists the returned tokens
func (c *Container) Login(ctx context.Context, creds models.LoginRequest) error {
	return c.Dispatch(ctx, Login{Credentials: creds})
}

// Register creates an account and signs in
func (c *Container) Register(ctx context.Context, req models.RegisterRequest) error {
	return c.Dispatch(ctx, Register{Request: req})
}

// Logout signs out remotely when possible and always forgets the stored tokens
func (c *Container) Logout(ctx context.Context) error {
	return c.Dispatch(ctx, Logout{})
}

// RefreshSession exchanges the refresh token for a new pair. Failure signs out.
func (c *Container) RefreshSession(ctx context.Context) error {
	return c.Dispatch(ctx, RefreshSession{})
}

// UpdateProfile sends partial to the server and replaces User with its answer
func (c *Container) UpdateProfile(ctx context.Context, partial models.UpdateUserRequest) error {
	return c.Dispatch(ctx, UpdateProfile{Partial: partial})
}

// UpdateUser merges patch into the local User without a network call
func (c *Container) UpdateUser(patch models.UserPatch) {
	c.Dispatch(context.Background(), UpdateUser{Partial: patch})
}

// LoadFromStorage restores a previously stored session
func (c *Container) LoadFromStorage(ctx context.Context) error {
	return c.Dispatch(ctx, LoadFromStorage{})
}

// ChangePassword dispatches ChangePassword
func (c *Container) ChangePassword(ctx context.Context, current, next string) error {
	return c.Dispatch(ctx, ChangePassword{Current: current, New: next})
}

// ForgotPassword asks the server to mail a reset link
func (c *Container) ForgotPassword(ctx context.Context, email string) error {
	return c.Dispatch(ctx, ForgotPassword{Email: email})
}

// ResetPassword sets a new password using a reset token
func (c *Container) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.Dispatch(ctx, ResetPassword{Token: token, NewPassword: newPassword})
}

// ClearError dispatches ClearError
func (c *Container) ClearError() {
	c.Dispatch(context.Background(), ClearError{})
}

func pending(s *Snapshot) {
	s.IsLoading = true
	s.Error = ""
}

// signedOut clears the session; msg becomes the Error
func signedOut(msg string) func(*Snapshot) {
	return func(s *Snapshot) {
		*s = Snapshot{Error: msg}
	}
}

func signedIn(user models.User, access, refresh string) func(*Snapshot) {
	return func(s *Snapshot) {
		*s = Snapshot{
			User:            &user,
			AccessToken:     access,
			RefreshToken:    refresh,
			IsAuthenticated: true,
		}
	}
}

func (c *Container) persist(ctx context.Context, resp *models.AuthResponse) error {
	if err := c.store.Set(ctx, credentials.AccessTokenKey, resp.AccessToken); err != nil {
		return err
	}
	return c.store.Set(ctx, credentials.RefreshTokenKey, resp.RefreshToken)
}

// authenticate is shared by login and register
func (c *Container) authenticate(ctx context.Context, intent, fallback string, call func(context.Context) (*models.AuthResponse, error)) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, pending)

	resp, err := call(ctx)
	if err == nil {
		err = c.persist(ctx, resp)
	}
	if err != nil {
		c.apply(intent, state.Rejected, id, signedOut(state.Message(err, fallback)))
		return err
	}

	c.apply(intent, state.Fulfilled, id, signedIn(resp.User, resp.AccessToken, resp.RefreshToken))
	c.logger.Info("Signed in", map[string]interface{}{"user_id": resp.User.ID})
	return nil
}

func (c *Container) login(ctx context.Context, in Login) error {
	if in.Credentials.Email == "" || in.Credentials.Password == "" {
		err := &state.ValidationFailure{Field: "credentials", Message: "Email and password are required"}
		c.apply("login", state.Rejected, 0, signedOut(err.Message))
		return err
	}
	return c.authenticate(ctx, "login", LoginFailed, func(ctx context.Context) (*models.AuthResponse, error) {
		return c.accounts.Login(ctx, in.Credentials)
	})
}

func (c *Container) register(ctx context.Context, in Register) error {
	r := in.Request
	if r.Email == "" || r.Password == "" || r.Username == "" {
		err := &state.ValidationFailure{Field: "registration", Message: "Email, password and username are required"}
		c.apply("register", state.Rejected, 0, signedOut(err.Message))
		return err
	}
	return c.authenticate(ctx, "register", RegistrationFailed, func(ctx context.Context) (*models.AuthResponse, error) {
		return c.accounts.Register(ctx, r)
	})
}

func (c *Container) logout(ctx context.Context) error {
	id := c.requests.Begin()
	c.apply("logout", state.Pending, id, func(s *Snapshot) { s.IsLoading = true })

	if err := c.accounts.Logout(ctx); err != nil {
		c.logger.Warn("Remote logout failed, clearing local session anyway", map[string]interface{}{
			"error": err.Error(),
		})
	}

	storeErr := c.store.RemoveAll(ctx, credentials.SessionKeys...)
	if storeErr != nil {
		c.logger.Error("Failed to remove stored tokens", map[string]interface{}{
			"error": storeErr.Error(),
		})
	}

	c.apply("logout", state.Fulfilled, id, signedOut(""))
	return storeErr
}

func (c *Container) refresh(ctx context.Context) error {
	token := c.refreshToken()
	if token == "" {
		c.apply("refreshSession", state.Rejected, 0, signedOut(ErrNoRefreshToken.Message))
		return ErrNoRefreshToken
	}

	id := c.requests.Begin()
	c.apply("refreshSession", state.Pending, id, pending)

	resp, err := c.accounts.Refresh(ctx, token)
	if err == nil {
		err = c.persist(ctx, resp)
	}
	if err != nil {
		c.logger.Warn("Session refresh failed, signing out", map[string]interface{}{
			"error": err.Error(),
		})
		c.apply("refreshSession", state.Rejected, id, signedOut(state.Message(err, RefreshFailed)))
		return err
	}

	c.apply("refreshSession", state.Fulfilled, id, signedIn(resp.User, resp.AccessToken, resp.RefreshToken))
	return nil
}

func (c *Container) updateProfile(ctx context.Context, in UpdateProfile) error {
	id := c.requests.Begin()
	c.apply("updateProfile", state.Pending, id, pending)

	user, err := c.accounts.UpdateProfile(ctx, in.Partial)
	if err != nil {
		c.apply("updateProfile", state.Rejected, id, func(s *Snapshot) {
			s.IsLoading = false
			s.Error = state.Message(err, ProfileUpdateFailed)
		})
		return err
	}

	c.apply("updateProfile", state.Fulfilled, id, func(s *Snapshot) {
		s.IsLoading = false
		s.User = user
		s.Error = ""
	})
	return nil
}

func (c *Container) loadFromStorage(ctx context.Context) error {
	id := c.requests.Begin()
	c.apply("loadFromStorage", state.Pending, id, func(s *Snapshot) { s.IsLoading = true })

	entries, err := c.store.Get(ctx, credentials.SessionKeys...)
	if err != nil {
		c.logger.Warn("Failed to read stored tokens", map[string]interface{}{"error": err.Error()})
		c.apply("loadFromStorage", state.Rejected, id, restoreFailed)
		return err
	}

	access, hasAccess := credentials.Lookup(entries, credentials.AccessTokenKey)
	refresh, hasRefresh := credentials.Lookup(entries, credentials.RefreshTokenKey)
	if !hasAccess || !hasRefresh || access == "" || refresh == "" {
		c.apply("loadFromStorage", state.Fulfilled, id, func(s *Snapshot) { s.IsLoading = false })
		return nil
	}

	warnIfExpired(c.logger, access)

	user, err := c.accounts.CurrentUser(api.WithAccessToken(ctx, access))
	if err != nil {
		c.logger.Info("Stored session is no longer valid", map[string]interface{}{"error": err.Error()})
		c.apply("loadFromStorage", state.Rejected, id, restoreFailed)
		return err
	}

	c.apply("loadFromStorage", state.Fulfilled, id, signedIn(*user, access, refresh))
	return nil
}

// restoreFailed leaves any previous Error in place
func restoreFailed(s *Snapshot) {
	s.IsLoading = false
	s.IsAuthenticated = false
	s.User = nil
	s.AccessToken = ""
	s.RefreshToken = ""
}

// simple runs a call whose only visible effect is IsLoading and Error
func (c *Container) simple(ctx context.Context, intent, fallback string, call func(context.Context) error) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, pending)

	if err := call(ctx); err != nil {
		c.apply(intent, state.Rejected, id, func(s *Snapshot) {
			s.IsLoading = false
			s.Error = state.Message(err, fallback)
		})
		return err
	}

	c.apply(intent, state.Fulfilled, id, func(s *Snapshot) { s.IsLoading = false })
	return nil
}
