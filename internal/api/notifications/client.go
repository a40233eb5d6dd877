// Package notifications wraps the notification inbox and push endpoints
package notifications

import (
	"context"
	"net/http"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/models"
)

// Client talks to /notifications
type Client struct {
	api api.Requester
}

// NewClient creates a notifications client on top of a shared requester
func NewClient(r api.Requester) *Client {
	return &Client{api: r}
}

// List returns the user's notifications, newest first as ordered by the server
func (c *Client) List(ctx context.Context) ([]models.Notification, error) {
	var items []models.Notification
	if err := c.api.Do(ctx, http.MethodGet, "/notifications", nil, true, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.api.Do(ctx, http.MethodPut, "/notifications/"+api.PathEscape(id)+"/read", nil, true, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.api.Do(ctx, http.MethodPut, "/notifications/read-all", nil, true, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.api.Do(ctx, http.MethodDelete, "/notifications/"+api.PathEscape(id), nil, true, nil)
}

// Settings returns the push preferences of the user
func (c *Client) Settings(ctx context.Context) (*models.PushSettings, error) {
	var settings models.PushSettings
	if err := c.api.Do(ctx, http.MethodGet, "/notifications/settings", nil, true, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) UpdateSettings(ctx context.Context, settings models.PushSettings) error {
	return c.api.Do(ctx, http.MethodPut, "/notifications/settings", settings, true, nil)
}

// RegisterDevice associates a push token with the signed-in user
func (c *Client) RegisterDevice(ctx context.Context, deviceToken string) error {
	return c.api.Do(ctx, http.MethodPost, "/notifications/register-device", models.DeviceRegistration{DeviceToken: deviceToken}, true, nil)
}
