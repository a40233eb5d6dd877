package models

import "encoding/json"

// PaginationMeta describes the page returned by a paginated endpoint
type PaginationMeta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// DefaultPagination is the pagination of an empty catalog
func DefaultPagination() PaginationMeta {
	return PaginationMeta{CurrentPage: 1, TotalPages: 1}
}

// Normalize re-derives HasNext and HasPrevious from CurrentPage and TotalPages
func (p PaginationMeta) Normalize() PaginationMeta {
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.TotalPages < 0 {
		p.TotalPages = 0
	}
	p.HasNext = p.CurrentPage < p.TotalPages
	p.HasPrevious = p.CurrentPage > 1
	return p
}

// NotificationType is the kind of a notification
type NotificationType string

const (
	NotificationNewBook         NotificationType = "NEW_BOOK"
	NotificationNewCategory     NotificationType = "NEW_CATEGORY"
	NotificationReadingReminder NotificationType = "READING_REMINDER"
	NotificationSystem          NotificationType = "SYSTEM"
)

// Valid reports whether t is a known notification type
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewBook, NotificationNewCategory, NotificationReadingReminder, NotificationSystem:
		return true
	}
	return false
}

// NotificationData links a notification to a catalog entity
type NotificationData struct {
	BookID     string `json:"bookId,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
}

// Notification is an in-app notification. Identity is ID.
type Notification struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      NotificationType  `json:"type"`
	Data      *NotificationData `json:"data,omitempty"`
	IsRead    bool              `json:"isRead"`
	CreatedAt string            `json:"createdAt"`
}

// UnmarshalJSON accepts "message" as an alias of "body"
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var aux struct {
		plain
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Notification(aux.plain)
	if n.Body == "" {
		n.Body = aux.Message
	}
	return nil
}

// PushSettings are the user's push notification preferences
type PushSettings struct {
	Enabled             bool `json:"enabled"`
	NewBooks            bool `json:"newBooks"`
	NewCategories       bool `json:"newCategories"`
	ReadingReminders    bool `json:"readingReminders"`
	SystemNotifications bool `json:"systemNotifications"`
}

// DeviceRegistration is the body of POST /notifications/register-device
type DeviceRegistration struct {
	DeviceToken string `json:"deviceToken"`
}

// ErrorEnvelope is the body the API returns with a non-success status
type ErrorEnvelope struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
