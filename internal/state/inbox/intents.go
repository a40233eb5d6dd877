package inbox

import (
	"context"
	"fmt"

	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Intent is one of the operations the inbox accepts
type Intent interface {
	inboxIntent()
}

type (
	FetchNotifications struct{}
	MarkAsRead         struct{ ID string }
	MarkAllAsRead      struct{}
	DeleteNotification struct{ ID string }
	// AddNotification is applied locally, typically from a push event
	AddNotification struct{ Notification models.Notification }
	FetchSettings   struct{}
	UpdateSettings  struct{ Settings models.PushSettings }
	ClearError      struct{}
)

func (FetchNotifications) inboxIntent() {}
func (MarkAsRead) inboxIntent()         {}
func (MarkAllAsRead) inboxIntent()      {}
func (DeleteNotification) inboxIntent() {}
func (AddNotification) inboxIntent()    {}
func (FetchSettings) inboxIntent()      {}
func (UpdateSettings) inboxIntent()     {}
func (ClearError) inboxIntent()         {}

// Dispatch runs intent to completion. The snapshot is already updated when
// Dispatch returns; the error is informational.
func (c *Container) Dispatch(ctx context.Context, intent Intent) error {
	switch in := intent.(type) {
	case FetchNotifications:
		return c.fetch(ctx)
	case MarkAsRead:
		return c.remote(ctx, "markAsRead", MarkReadFailed, func(ctx context.Context) error {
			return c.notifications.MarkRead(ctx, in.ID)
		}, func(s *Snapshot) {
			if i := indexOf(s.Items, in.ID); i >= 0 && !s.Items[i].IsRead {
				s.Items[i].IsRead = true
				s.UnreadCount--
			}
		})
	case MarkAllAsRead:
		return c.remote(ctx, "markAllAsRead", MarkAllReadFailed, c.notifications.MarkAllRead, func(s *Snapshot) {
			for i := range s.Items {
				s.Items[i].IsRead = true
			}
			s.UnreadCount = 0
		})
	case DeleteNotification:
		return c.remote(ctx, "deleteNotification", DeleteFailed, func(ctx context.Context) error {
			return c.notifications.Delete(ctx, in.ID)
		}, func(s *Snapshot) {
			i := indexOf(s.Items, in.ID)
			if i < 0 {
				return
			}
			if !s.Items[i].IsRead {
				s.UnreadCount--
			}
			s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
		})
	case AddNotification:
		c.apply("addNotification", state.Fulfilled, 0, func(s *Snapshot) { add(s, in.Notification) })
		return nil
	case FetchSettings:
		return c.fetchSettings(ctx)
	case UpdateSettings:
		settings := in.Settings
		return c.remote(ctx, "updateSettings", UpdateSettingsFailed, func(ctx context.Context) error {
			return c.notifications.UpdateSettings(ctx, settings)
		}, func(s *Snapshot) { s.Settings = &settings })
	case ClearError:
		c.apply("clearError", state.Fulfilled, 0, func(s *Snapshot) { s.Error = "" })
		return nil
	default:
		return fmt.Errorf("inbox: unsupported intent %T", intent)
	}
}

// FetchNotifications replaces Items and recounts UnreadCount
func (c *Container) FetchNotifications(ctx context.Context) error {
	return c.Dispatch(ctx, FetchNotifications{})
}

// MarkAsRead dispatches MarkAsRead
func (c *Container) MarkAsRead(ctx context.Context, id string) error {
	return c.Dispatch(ctx, MarkAsRead{ID: id})
}

// MarkAllAsRead dispatches MarkAllAsRead
func (c *Container) MarkAllAsRead(ctx context.Context) error {
	return c.Dispatch(ctx, MarkAllAsRead{})
}

// DeleteNotification dispatches DeleteNotification
func (c *Container) DeleteNotification(ctx context.Context, id string) error {
	return c.Dispatch(ctx, DeleteNotification{ID: id})
}

// AddNotification records a notification received while running
func (c *Container) AddNotification(n models.Notification) {
	c.Dispatch(context.Background(), AddNotification{Notification: n})
}

// FetchSettings dispatches FetchSettings
func (c *Container) FetchSettings(ctx context.Context) error {
	return c.Dispatch(ctx, FetchSettings{})
}

// UpdateSettings dispatches UpdateSettings
func (c *Container) UpdateSettings(ctx context.Context, settings models.PushSettings) error {
	return c.Dispatch(ctx, UpdateSettings{Settings: settings})
}

// ClearError dispatches ClearError
func (c *Container) ClearError() {
	c.Dispatch(context.Background(), ClearError{})
}

// add prepends n, or replaces the entry with the same ID in place
func add(s *Snapshot, n models.Notification) {
	if i := indexOf(s.Items, n.ID); i >= 0 {
		if !s.Items[i].IsRead {
			s.UnreadCount--
		}
		s.Items[i] = n
	} else {
		s.Items = append([]models.Notification{n}, s.Items...)
	}
	if !n.IsRead {
		s.UnreadCount++
	}
}

func (c *Container) fetch(ctx context.Context) error {
	id := c.requests.Begin()
	c.apply("fetchNotifications", state.Pending, id, func(s *Snapshot) {
		s.IsLoading = true
		s.Error = ""
	})

	items, err := c.notifications.List(ctx)
	if err != nil {
		c.apply("fetchNotifications", state.Rejected, id, func(s *Snapshot) {
			s.IsLoading = false
			s.Error = state.Message(err, FetchFailed)
		})
		return err
	}

	c.apply("fetchNotifications", state.Fulfilled, id, func(s *Snapshot) {
		s.IsLoading = false
		s.Error = ""
		s.Items = append([]models.Notification(nil), items...)
		s.UnreadCount = countUnread(items)
	})
	return nil
}

func (c *Container) fetchSettings(ctx context.Context) error {
	id := c.requests.Begin()
	c.apply("fetchSettings", state.Pending, id, func(*Snapshot) {})

	settings, err := c.notifications.Settings(ctx)
	if err != nil {
		c.apply("fetchSettings", state.Rejected, id, func(s *Snapshot) {
			s.Error = state.Message(err, FetchSettingsFailed)
		})
		return err
	}

	c.apply("fetchSettings", state.Fulfilled, id, func(s *Snapshot) { s.Settings = settings })
	return nil
}

// remote performs call and applies onSuccess only when it succeeds
func (c *Container) remote(ctx context.Context, intent, fallback string, call func(context.Context) error, onSuccess func(*Snapshot)) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, func(*Snapshot) {})

	if err := call(ctx); err != nil {
		c.apply(intent, state.Rejected, id, func(s *Snapshot) {
			s.Error = state.Message(err, fallback)
		})
		return err
	}

	c.apply(intent, state.Fulfilled, id, onSuccess)
	return nil
}
