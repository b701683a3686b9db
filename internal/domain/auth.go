package domain

import "time"

// TokenType differentiates access and refresh JWTs.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Credential is the bearer pair handed out on login or refresh.
type Credential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenClaims is the decoded payload of a credential token.
type TokenClaims struct {
	TokenType TokenType
	ExpiresAt time.Time
	IssuedAt  time.Time
	JTI       string
	UserID    string
}

// PasswordResetCode is a short-lived code mailed to a user to reset a password.
type PasswordResetCode struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (c *PasswordResetCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
