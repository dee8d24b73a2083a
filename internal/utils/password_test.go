package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	for _, pw := range []string{"password123", "correct horse battery staple", "ünïcødé-pässwörd"} {
		h, err := HashPassword(pw, bcrypt.MinCost)
		require.NoError(t, err)
		assert.NotEqual(t, pw, h)
		assert.True(t, VerifyPassword(h, pw), "verify %q", pw)
		assert.False(t, VerifyPassword(h, pw+"x"), "verify wrong password for %q", pw)
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("", "password123"))
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "password123"))
	assert.False(t, VerifyPassword("$2a$10$short", "password123"))
}

func TestHashPasswordByteLimit(t *testing.T) {
	// 36 two-byte runes: 72 bytes, the most bcrypt takes.
	atLimit := strings.Repeat("é", 36)
	h, err := HashPassword(atLimit, bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, atLimit))

	_, err = HashPassword(strings.Repeat("é", 37), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = HashPassword(strings.Repeat("a", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
