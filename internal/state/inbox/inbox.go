// Package inbox holds the user's in-app notifications and push preferences.
//
// UnreadCount is maintained incrementally by every intent and only
// recomputed from scratch when a full list is fetched. It stays within
// [0, len(Items)] after every transition.
package inbox

import (
	"context"
	"sync"

	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Default error messages per intent
const (
	FetchFailed          = "Failed to fetch notifications"
	MarkReadFailed       = "Failed to mark notification as read"
	MarkAllReadFailed    = "Failed to mark all notifications as read"
	DeleteFailed         = "Failed to delete notification"
	FetchSettingsFailed  = "Failed to fetch notification settings"
	UpdateSettingsFailed = "Failed to update notification settings"
)

// NotificationsAPI is the remote side of the inbox
type NotificationsAPI interface {
	List(ctx context.Context) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Settings(ctx context.Context) (*models.PushSettings, error)
	UpdateSettings(ctx context.Context, settings models.PushSettings) error
}

// Snapshot is the observable inbox state
type Snapshot struct {
	Items       []models.Notification
	UnreadCount int
	Settings    *models.PushSettings
	IsLoading   bool
	Error       string
}

func (s Snapshot) clone() Snapshot {
	if s.Items != nil {
		items := make([]models.Notification, len(s.Items))
		for i, n := range s.Items {
			if n.Data != nil {
				d := *n.Data
				n.Data = &d
			}
			items[i] = n
		}
		s.Items = items
	}
	if s.Settings != nil {
		settings := *s.Settings
		s.Settings = &settings
	}
	return s
}

// Container serializes inbox transitions
type Container struct {
	mu      sync.Mutex
	current Snapshot

	notifications NotificationsAPI
	hub           state.Hub[Snapshot]
	requests      state.Tracker
	version       state.Version
	logger        *logger.Logger
}

// New creates an empty inbox
func New(notifications NotificationsAPI, log *logger.Logger) *Container {
	if log == nil {
		log = logger.Component("inbox")
	}
	return &Container{notifications: notifications, logger: log}
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

// UnreadCount returns the number of unread notifications
func (c *Container) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.UnreadCount
}

func (c *Container) apply(intent string, phase state.Phase, id state.RequestID, fn func(*Snapshot)) {
	c.mu.Lock()
	fn(&c.current)
	if c.current.UnreadCount < 0 {
		c.current.UnreadCount = 0
	}
	if c.current.UnreadCount > len(c.current.Items) {
		c.logger.Warn("Unread count exceeded notification count", map[string]interface{}{
			"unread": c.current.UnreadCount,
			"items":  len(c.current.Items),
		})
		c.current.UnreadCount = len(c.current.Items)
	}
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
		c.logger.Debug("Inbox transition", fields)
	}
	c.hub.Publish(version, snap)
}

func indexOf(items []models.Notification, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func countUnread(items []models.Notification) int {
	n := 0
	for _, item := range items {
		if !item.IsRead {
			n++
		}
	}
	return n
}
