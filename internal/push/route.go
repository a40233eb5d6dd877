package push

import (
	"fmt"

	"github.com/drallgood/ebook-reader/internal/models"
)

// TapPayload is the data carried by a notification the user tapped
type TapPayload struct {
	Type       models.NotificationType `json:"type"`
	BookID     string                  `json:"bookId,omitempty"`
	CategoryID string                  `json:"categoryId,omitempty"`
}

// DestinationKind is a screen the view can navigate to
type DestinationKind int

const (
	Notifications DestinationKind = iota
	BookDetail
	Category
)

func (k DestinationKind) String() string {
	switch k {
	case BookDetail:
		return "book"
	case Category:
		return "category"
	default:
		return "notifications"
	}
}

// Destination is where a tap leads. ID is empty for Notifications.
type Destination struct {
	Kind DestinationKind
	ID   string
}

func (d Destination) String() string {
	if d.ID == "" {
		return d.Kind.String()
	}
	return fmt.Sprintf("%s/%s", d.Kind, d.ID)
}

// Navigator receives routing decisions; the view owns the actual navigation
type Navigator interface {
	Navigate(Destination)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(Destination)

func (f NavigatorFunc) Navigate(d Destination) { f(d) }

// Route maps a tap payload to a destination. A NEW_BOOK without a book or a
// NEW_CATEGORY without a category falls back to the notification list.
func Route(p TapPayload) Destination {
	switch p.Type {
	case models.NotificationNewBook:
		if p.BookID != "" {
			return Destination{Kind: BookDetail, ID: p.BookID}
		}
	case models.NotificationNewCategory:
		if p.CategoryID != "" {
			return Destination{Kind: Category, ID: p.CategoryID}
		}
	case models.NotificationReadingReminder, models.NotificationSystem:
	}
	return Destination{Kind: Notifications}
}
