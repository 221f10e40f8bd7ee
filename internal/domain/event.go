package domain

import "time"

// Event names published on the lifecycle exchange
const (
	EventUserRegistered    = "user.registered"
	EventUserEmailVerified = "user.email.verified"
)

// EventPayload carries the facts a notification needs about the user
type EventPayload struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// NotificationEvent is a named lifecycle fact with its payload.
// ID is stable across broker redeliveries and keys consumer idempotency.
type NotificationEvent struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	OccurredAt time.Time    `json:"occurred_at"`
	Payload    EventPayload `json:"payload"`
}
