package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPasswordPolicy(t *testing.T) {
	assert.ErrorIs(t, CheckPasswordPolicy("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, CheckPasswordPolicy(strings.Repeat("x", 73)), ErrPasswordTooLong)
	assert.NoError(t, CheckPasswordPolicy("eight-ch"))
	assert.NoError(t, CheckPasswordPolicy(strings.Repeat("x", 72)))
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct-horse"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong-horse"), bcrypt.ErrMismatchedHashAndPassword)
	assert.Error(t, ComparePassword("", "correct-horse"))
}

func TestHashPassword_OutOfRangeCost(t *testing.T) {
	hash, err := HashPassword("correct-horse", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
