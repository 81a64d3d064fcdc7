package events

import (
	"time"

	"github.com/spec-kit/storefront-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventAdminBootstrapped EventType = "admin_bootstrapped"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventLoginThrottled    EventType = "login_throttled"
	EventPasswordChanged   EventType = "password_changed"
	EventProfileUpdated    EventType = "profile_updated"
	EventLoggedOut         EventType = "logged_out"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	SubjectID string      `json:"subject_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload payload. Reason is for operators only.
type LoginFailedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// EmailPayload carries the email an event concerns.
type EmailPayload struct {
	Email string `json:"email"`
}
