package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionEstablished EventType = "session_established"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventSessionCleared     EventType = "session_cleared"
	EventSessionExpiring    EventType = "session_expiring"
	EventSessionExpired     EventType = "session_expired"
	EventAuthFailed         EventType = "auth_failed"
)

// Event represents a session lifecycle change emitted by the credential store.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	SubjectID string              `json:"subject_id,omitempty"`
	Role      domain.Role         `json:"role,omitempty"`
	State     domain.SessionState `json:"state"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload,omitempty"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, state domain.SessionState) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
}

// ExpiringPayload accompanies EventSessionExpiring.
type ExpiringPayload struct {
	ExpiresAt time.Time     `json:"expires_at"`
	Remaining time.Duration `json:"remaining"`
}

// ClearedPayload accompanies EventSessionCleared.
type ClearedPayload struct {
	Reason string `json:"reason"`
}

// AuthFailedPayload accompanies EventAuthFailed.
type AuthFailedPayload struct {
	Code string `json:"code"`
}
