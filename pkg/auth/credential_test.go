package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "driver-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestCredential_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	cred := NewCredential(signedToken(t, exp))

	assert.False(t, cred.Empty())
	assert.Equal(t, exp.Unix(), cred.ExpiresAt().Unix())
	assert.False(t, cred.Expired(time.Now()))
	assert.True(t, cred.Expired(exp.Add(time.Minute)))
}

func TestCredential_OpaqueToken(t *testing.T) {
	cred := NewCredential("not-a-jwt")

	assert.False(t, cred.Empty())
	assert.True(t, cred.ExpiresAt().IsZero())
	assert.False(t, cred.Expired(time.Now().Add(24*time.Hour)))
}

func TestCredential_Empty(t *testing.T) {
	cred := NewCredential("  ")
	assert.True(t, cred.Empty())
	assert.False(t, cred.Expired(time.Now()))
}
