// Package accounts wraps the authentication and profile endpoints
package accounts

import (
	"context"
	"net/http"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/models"
)

// Client talks to the /auth endpoints
type Client struct {
	api api.Requester
}

// NewClient creates an accounts client on top of a shared requester
func NewClient(r api.Requester) *Client {
	return &Client{api: r}
}

// Login exchanges credentials for a user and a token pair
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/login", req, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and signs it in
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/register", req, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the current session on the server
func (c *Client) Logout(ctx context.Context) error {
	return c.api.Do(ctx, http.MethodPost, "/auth/logout", nil, true, nil)
}

// Refresh exchanges a refresh token for a new token pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var resp models.AuthResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/refresh", body, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CurrentUser returns the profile of the authenticated user
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.api.Do(ctx, http.MethodGet, "/auth/me", nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update and returns the stored profile
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.api.Do(ctx, http.MethodPut, "/auth/profile", req, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	req := models.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	return c.api.Do(ctx, http.MethodPost, "/auth/change-password", req, true, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.api.Do(ctx, http.MethodPost, "/auth/forgot-password", body, false, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := models.ResetPasswordRequest{Token: token, NewPassword: newPassword}
	return c.api.Do(ctx, http.MethodPost, "/auth/reset-password", req, false, nil)
}
