// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit consumer.
package queue

import "time"

// Event types published on the user events queue.
const (
	EventUserRegistered = "user.registered"
	EventUserDeleted    = "user.deleted"
)

// UserEvent is published when a user account is created or removed. It
// carries enough information for downstream consumers to audit or notify
// without querying the primary database. It never carries credentials.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	ActorID    uint64    `json:"actor_id,omitempty"` // admin who performed the action, if any
	OccurredAt time.Time `json:"occurred_at"`
}
