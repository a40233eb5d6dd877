// Package push connects the platform notification service to the core:
// device registration, incoming notifications, tap routing and locally
// scheduled reminders.
package push

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/drallgood/ebook-reader/internal/cache"
	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
)

// DefaultDedupeWindow is how long a delivered event ID is remembered
const DefaultDedupeWindow = 10 * time.Minute

// DeviceRegistrar forwards the device token to the API
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, deviceToken string) error
}

// Inbox receives notifications delivered by the platform
type Inbox interface {
	AddNotification(models.Notification)
}

// Event is a notification delivered by the platform
type Event struct {
	ID      string
	Title   string
	Message string
	Data    *TapPayload
	// UserInteraction is set when the user opened the app from the notification
	UserInteraction bool
	ReceivedAt      time.Time
}

func (e Event) notification() models.Notification {
	n := models.Notification{
		ID:        e.ID,
		Title:     e.Title,
		Body:      e.Message,
		Type:      models.NotificationSystem,
		CreatedAt: e.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if e.Data != nil {
		if e.Data.Type.Valid() {
			n.Type = e.Data.Type
		}
		if e.Data.BookID != "" || e.Data.CategoryID != "" {
			n.Data = &models.NotificationData{BookID: e.Data.BookID, CategoryID: e.Data.CategoryID}
		}
	}
	return n
}

// Bridge handles callbacks from the platform notification service
type Bridge struct {
	registrar DeviceRegistrar
	inbox     Inbox
	navigator Navigator
	seen      *cache.MemoryCache[string, struct{}]
	window    time.Duration
	logger    *logger.Logger
}

// NewBridge creates a bridge. navigator may be nil when taps are not routed.
func NewBridge(registrar DeviceRegistrar, inbox Inbox, navigator Navigator, window time.Duration, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Component("push")
	}
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Bridge{
		registrar: registrar,
		inbox:     inbox,
		navigator: navigator,
		seen:      cache.NewMemoryCache[string, struct{}](log),
		window:    window,
		logger:    log,
	}
}

// OnRegister forwards a new device token. Failures are logged only.
func (b *Bridge) OnRegister(ctx context.Context, deviceToken string) {
	if err := b.registrar.RegisterDevice(ctx, deviceToken); err != nil {
		b.logger.Error("Failed to register device token", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	b.logger.Info("Registered device for push notifications")
}

// OnNotification records a delivered notification in the inbox and routes it
// when the user tapped it and it carries a payload. It reports whether the
// event was new; a repeated ID within the dedupe window is not added again
// but is still routed.
func (b *Bridge) OnNotification(ctx context.Context, e Event) bool {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	fresh := b.seen.Remember(e.ID, struct{}{}, b.window)
	if fresh {
		b.inbox.AddNotification(e.notification())
	}

	if e.UserInteraction && e.Data != nil {
		b.route(ctx, e.ID, *e.Data)
	}
	return fresh
}

func (b *Bridge) route(ctx context.Context, id string, payload TapPayload) {
	dest := Route(payload)
	logger.Ctx(ctx, b.logger).Debug("Routing notification tap", map[string]interface{}{
		"notification_id": id,
		"destination":     dest.String(),
	})
	if b.navigator != nil {
		b.navigator.Navigate(dest)
	}
}
