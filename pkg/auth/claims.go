package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the fields read from the marketplace access token.
type SessionClaims struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the user id, falling back to the subject claim.
func (c *SessionClaims) Principal() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}
