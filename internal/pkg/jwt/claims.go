// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes.
const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
	PurposeOAuth   = "oauth"
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
	Device   string `json:"device,omitempty"`
	Provider string `json:"provider,omitempty"` // oauth tokens only
	LinkUser string `json:"link_uid,omitempty"` // oauth link flow: account to attach to
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID is the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
