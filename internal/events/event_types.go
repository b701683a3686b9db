package events

import (
	"time"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventUserLoggedIn           EventType = "user_logged_in"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
	EventTokenBlacklisted       EventType = "token_blacklisted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Role       domain.Role `json:"role"`
	ResetCode  string      `json:"-"`
	CodeExpiry time.Time   `json:"code_expires_at"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	Role domain.Role `json:"role"`
}

// PasswordResetRequestedPayload payload. The code is only handed to the mailer.
type PasswordResetRequestedPayload struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenBlacklistedPayload payload.
type TokenBlacklistedPayload struct {
	JTI string `json:"jti"`
}
