package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// Validator decodes credential tokens locally and checks expiry. It never
// verifies signatures; the API remains the authority on validity.
type Validator struct {
	parser *jwt.Parser
	leeway time.Duration
	now    Clock
	logger *zap.Logger
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithLeeway tolerates clock skew by treating tokens as live for d past exp.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now Clock) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithValidatorLogger receives decode diagnostics.
func WithValidatorLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator builds a validator with no leeway.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		parser: jwt.NewParser(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// subjectID accepts numeric and string user ids.
type subjectID string

func (s *subjectID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		*s = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*s = subjectID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return err
	}
	*s = subjectID(num.String())
	return nil
}

type tokenPayload struct {
	TokenType domain.TokenType `json:"token_type"`
	UserID    subjectID        `json:"user_id"`
	jwt.RegisteredClaims
}

// DecodeClaims decodes the payload segment of token. The header and
// signature segments are not inspected. A payload without exp is a decode
// error, so such tokens count as expired. This is stricter than a plain
// exp*1000 < now comparison, which reads a missing exp as live.
func (v *Validator) DecodeClaims(token string) (*domain.TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &DecodeError{Err: errors.New("empty token")}
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, &DecodeError{Err: errors.New("token has no payload segment")}
	}
	raw, err := v.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if payload.ExpiresAt == nil {
		return nil, &DecodeError{Err: errors.New("missing exp claim")}
	}

	claims := &domain.TokenClaims{
		TokenType: payload.TokenType,
		ExpiresAt: payload.ExpiresAt.Time,
		JTI:       payload.ID,
		UserID:    string(payload.UserID),
	}
	if payload.IssuedAt != nil {
		claims.IssuedAt = payload.IssuedAt.Time
	}
	if claims.UserID == "" {
		claims.UserID = payload.Subject
	}
	return claims, nil
}

// IsExpired reports whether the token is past its exp. Tokens that cannot be
// decoded count as expired.
func (v *Validator) IsExpired(token string) bool {
	expired, err := v.Expired(token)
	if err != nil {
		v.logger.Debug("treating undecodable token as expired", zap.Error(err))
		return true
	}
	return expired
}

// Expired is IsExpired with the decode error kept for diagnostics.
func (v *Validator) Expired(token string) (bool, error) {
	claims, err := v.DecodeClaims(token)
	if err != nil {
		return true, err
	}
	// exp is whole seconds, compared in milliseconds
	expMillis := claims.ExpiresAt.Add(v.leeway).UnixMilli()
	return expMillis < v.now().UnixMilli(), nil
}
