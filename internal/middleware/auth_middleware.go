// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"strings"

	"blog-session/internal/domain/auth"
	"blog-session/internal/pkg/jwt"
	"blog-session/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxIsAdmin  = "is_admin"
	ctxJTI      = "jti"
	ctxDevice   = "device"
)

// AccountLookup resolves the account behind a token so deleted accounts and
// role changes take effect before the token expires.
type AccountLookup interface {
	FindByID(ctx context.Context, id string) (*auth.Account, error)
}

type AuthMiddleware struct {
	verifier *jwt.Verifier
	accounts AccountLookup
}

func NewAuthMiddleware(verifier *jwt.Verifier, accounts AccountLookup) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, accounts: accounts}
}

// Auth rejects requests without a valid access token: 498 when the token has
// only expired, 401 otherwise.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			if jwt.IsExpired(err) {
				response.StaleToken(c)
				return
			}
			response.Unauthorized(c, "invalid token")
			return
		}

		if !m.bind(c, claims) {
			response.Unauthorized(c, "account no longer exists")
			return
		}
		c.Next()
	}
}

// RequireAdmin MUST be used after Auth().
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Forbidden(c, "admin privileges required")
			return
		}
		c.Next()
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireAdmin)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireAdmin(),
	}
}

// OptionalAuth sets the user context when a usable token is present. An
// expired token still answers 498 so the client refreshes instead of seeing
// a silently anonymous response.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			if jwt.IsExpired(err) {
				response.StaleToken(c)
				return
			}
			c.Next()
			return
		}

		m.bind(c, claims)
		c.Next()
	}
}

// BearerToken exposes the raw bearer for handlers that verify their own
// token kind, such as OAuth hand-off tokens.
func BearerToken(c *gin.Context) string {
	return extractToken(c)
}

// bind sets the user context. The stored account, when available, overrides
// the admin claim.
func (m *AuthMiddleware) bind(c *gin.Context, claims *jwt.Claims) bool {
	isAdmin := claims.IsAdmin
	if m.accounts != nil {
		acc, err := m.accounts.FindByID(c.Request.Context(), claims.UserID())
		if err != nil {
			return false
		}
		isAdmin = acc.IsAdmin
	}

	c.Set(ctxUserID, claims.UserID())
	c.Set(ctxUsername, claims.Username)
	c.Set(ctxIsAdmin, isAdmin)
	c.Set(ctxJTI, claims.ID)
	c.Set(ctxDevice, claims.Device)
	return true
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}

// GetUserID gets the authenticated user id from context
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// MustGetUserID gets the user id from context or panics
func MustGetUserID(c *gin.Context) string {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetUserID(c)
	return ok
}

// IsAdmin reports the admin claim of the access token.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}

// GetDevice returns the device the access token was issued to.
func GetDevice(c *gin.Context) string {
	return c.GetString(ctxDevice)
}

// GetUsername returns the username claim of the access token.
func GetUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}
