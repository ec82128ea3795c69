package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the already-issued bearer token the host's auth layer hands
// the engine. The engine never issues or verifies tokens; it only inspects
// the expiry claim so the sync engine can skip push attempts that are
// guaranteed to be rejected.
type Credential struct {
	token     string
	expiresAt time.Time
}

// NewCredential wraps a bearer token. Opaque (non-JWT) tokens are accepted;
// they simply never report as expired locally.
func NewCredential(token string) Credential {
	cred := Credential{token: strings.TrimSpace(token)}
	if cred.token == "" {
		return cred
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(cred.token, claims); err != nil {
		return cred
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cred.expiresAt = exp.Time
	}
	return cred
}

// Token returns the raw bearer token.
func (c Credential) Token() string {
	return c.token
}

// Empty reports whether any token was supplied.
func (c Credential) Empty() bool {
	return c.token == ""
}

// ExpiresAt returns the expiry claim, zero when unknown.
func (c Credential) ExpiresAt() time.Time {
	return c.expiresAt
}

// Expired reports whether the token is past its expiry claim.
func (c Credential) Expired(now time.Time) bool {
	if c.expiresAt.IsZero() {
		return false
	}
	return now.After(c.expiresAt)
}
