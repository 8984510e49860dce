package domain

import "time"

// NotificationType is the severity shown to the user
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is an in-app message for one user
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// EventKind selects who receives a NotificationEvent
type EventKind string

const (
	// EventUser notifies a single user in-app.
	EventUser EventKind = "user"
	// EventAdmins notifies every admin in-app.
	EventAdmins EventKind = "admins"
	// EventAdminEmail emails the configured admin address.
	EventAdminEmail EventKind = "admin_email"
	// EventBroadcast emails every user with an address.
	EventBroadcast EventKind = "broadcast"
)

// NotificationEvent is published on the notification bus and fanned out
// by the dispatcher. Delivery is best effort.
type NotificationEvent struct {
	Kind      EventKind        `json:"kind"`
	UserID    string           `json:"user_id,omitempty"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type,omitempty"`
	Details   map[string]any   `json:"details,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Valid reports whether the event carries enough to be delivered.
func (e *NotificationEvent) Valid() bool {
	if e.Title == "" && e.Message == "" {
		return false
	}
	switch e.Kind {
	case EventUser:
		return e.UserID != ""
	case EventAdmins, EventAdminEmail, EventBroadcast:
		return true
	}
	return false
}

// BroadcastRequest is the admin payload for a mass email
type BroadcastRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate checks the request fields.
func (r *BroadcastRequest) Validate() error {
	if r.Subject == "" || r.Message == "" {
		return InvalidInput("subject and message are required")
	}
	return nil
}
