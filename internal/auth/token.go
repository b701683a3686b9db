package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// ErrWrongTokenType is returned when a refresh token is used as access or vice versa.
var ErrWrongTokenType = errors.New("wrong token type")

// TokenManager handles issuing and validating JWT pairs.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, accessTTLMinutes, refreshTTLMinutes int) *TokenManager {
	if accessTTLMinutes <= 0 {
		accessTTLMinutes = 60
	}
	if refreshTTLMinutes <= 0 {
		refreshTTLMinutes = 60 * 24
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshTTLMinutes) * time.Minute,
		now:        time.Now,
	}
}

// Claims describes JWT payload.
type Claims struct {
	TokenType domain.TokenType `json:"token_type"`
	UserID    string           `json:"user_id"`
	UserEmail string           `json:"user_email"`
	UserRole  domain.Role      `json:"user_role"`
	jwt.RegisteredClaims
}

// IssuePair signs a fresh access and refresh token for the user.
func (tm *TokenManager) IssuePair(user *domain.User) (*domain.Credential, error) {
	access, err := tm.sign(user, domain.TokenTypeAccess, tm.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.sign(user, domain.TokenTypeRefresh, tm.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.Credential{Access: access, Refresh: refresh}, nil
}

// IssueAccess signs only an access token, used when refreshing.
func (tm *TokenManager) IssueAccess(user *domain.User) (string, error) {
	return tm.sign(user, domain.TokenTypeAccess, tm.accessTTL)
}

func (tm *TokenManager) sign(user *domain.User, tokenType domain.TokenType, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &Claims{
		TokenType: tokenType,
		UserID:    user.ID,
		UserEmail: user.Email,
		UserRole:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates signature, expiry and token type and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string, want domain.TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: got %q", ErrWrongTokenType, claims.TokenType)
	}
	return claims, nil
}
