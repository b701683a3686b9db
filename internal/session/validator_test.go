package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

func TestValidator_IsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewValidator(WithClock(func() time.Time { return now }))
	live := fmt.Sprintf(`{"exp":%d}`, now.Add(time.Hour).Unix())

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"future exp", mintToken(t, domain.TokenTypeAccess, now.Add(time.Minute)), false},
		{"past exp", mintToken(t, domain.TokenTypeAccess, now.Add(-time.Second)), true},
		{"exp equal to now", mintToken(t, domain.TokenTypeAccess, now), false},
		{"empty", "", true},
		{"garbage", "not-a-jwt", true},
		{"bad payload", "eyJhbGciOiJIUzI1NiJ9.bm9wZQ.c2ln", true},
		{"header without alg", rawToken(`{"typ":"JWT"}`, live, "sig"), false},
		{"unknown alg", rawToken(`{"alg":"XYZ"}`, live, "sig"), false},
		{"header not base64", "!!!." + segment(live) + ".sig", false},
		{"two segments", segment(`{"alg":"HS256"}`) + "." + segment(live), false},
		{"expired with odd header", rawToken(`{"alg":"XYZ"}`, `{"exp":1}`, "sig"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsExpired(tt.token))
		})
	}
}

func TestValidator_ComparesInMilliseconds(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	token := mintToken(t, domain.TokenTypeAccess, exp)

	justAfter := NewValidator(WithClock(func() time.Time { return exp.Add(time.Millisecond) }))
	assert.True(t, justAfter.IsExpired(token))

	atExp := NewValidator(WithClock(func() time.Time { return exp }))
	assert.False(t, atExp.IsExpired(token))
}

func TestValidator_Leeway(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	token := mintToken(t, domain.TokenTypeAccess, exp)
	clock := func() time.Time { return exp.Add(20 * time.Second) }

	assert.True(t, NewValidator(WithClock(clock)).IsExpired(token))
	assert.False(t, NewValidator(WithClock(clock), WithLeeway(30*time.Second)).IsExpired(token))
}

func TestValidator_DecodeClaims(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	v := NewValidator()

	claims, err := v.DecodeClaims(mintToken(t, domain.TokenTypeRefresh, exp))
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, claims.TokenType)
	assert.Equal(t, "42", claims.UserID)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.NotEmpty(t, claims.JTI)
}

func TestValidator_DecodeClaims_SubjectFallback(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSigningKey)
	require.NoError(t, err)

	claims, err := NewValidator().DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
}

func TestValidator_MissingExpIsDecodeError(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "1"}).SignedString(testSigningKey)
	require.NoError(t, err)

	v := NewValidator()
	_, err = v.DecodeClaims(token)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.True(t, v.IsExpired(token))
}

func TestValidator_IgnoresSignature(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("some-other-key"))
	require.NoError(t, err)

	assert.False(t, NewValidator().IsExpired(signed))
}

func segment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func rawToken(header, payload, sig string) string {
	return segment(header) + "." + segment(payload) + "." + sig
}
