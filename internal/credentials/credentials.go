// Package credentials models the bearer credential a dashboard user presents
// to the booking API.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential is returned before any I/O when no token is present
	ErrMissingCredential = errors.New("missing credential")
	// ErrExpiredCredential is returned before any I/O when a JWT credential has expired
	ErrExpiredCredential = errors.New("credential expired")
)

// Claims are the JWT claims the dashboards read. The booking API issues them;
// the portal never verifies signatures, it only reads identity and expiry.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Credential is an opaque bearer token, optionally a JWT
type Credential struct {
	token  string
	claims *Claims
}

// New wraps a raw token. JWT claims are decoded when the token is a JWT.
func New(token string) Credential {
	token = strings.TrimSpace(token)
	c := Credential{token: token}
	if token == "" {
		return c
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		c.claims = claims
	}
	return c
}

// Token returns the raw token
func (c Credential) Token() string {
	return c.token
}

// IsEmpty reports whether no token was supplied
func (c Credential) IsEmpty() bool {
	return c.token == ""
}

// Claims returns the decoded JWT claims, if the token is a JWT
func (c Credential) Claims() (*Claims, bool) {
	return c.claims, c.claims != nil
}

// Validate fails for an empty token or a JWT whose exp is not after now.
// Opaque tokens are left for the booking API to judge.
func (c Credential) Validate(now time.Time) error {
	if c.IsEmpty() {
		return ErrMissingCredential
	}
	if c.claims != nil && c.claims.ExpiresAt != nil && !now.Before(c.claims.ExpiresAt.Time) {
		return ErrExpiredCredential
	}
	return nil
}

// DisplayName returns the name claim, or fallback when there is none
func (c Credential) DisplayName(fallback string) string {
	if c.claims != nil && strings.TrimSpace(c.claims.Name) != "" {
		return strings.TrimSpace(c.claims.Name)
	}
	return fallback
}

// Subject returns the sub claim, empty for opaque tokens
func (c Credential) Subject() string {
	if c.claims == nil {
		return ""
	}
	return c.claims.Subject
}

// Fingerprint is a digest of the token, usable as a map key without keeping
// the token itself. It is empty for an empty credential.
func (c Credential) Fingerprint() string {
	if c.IsEmpty() {
		return ""
	}
	sum := sha256.Sum256([]byte(c.token))
	return hex.EncodeToString(sum[:16])
}

// AuthorizationHeader returns the value for the Authorization header
func (c Credential) AuthorizationHeader() string {
	return "Bearer " + c.token
}
