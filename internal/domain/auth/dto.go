// internal/domain/auth/dto.go
package auth

// Validation tags use gin's "binding" key so the same structs are checked by
// the stub's ShouldBindJSON and by the client before a request is sent.

// LoginRequest for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// RegisterRequest for user registration
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum"`
	Password string `json:"password" binding:"required,min=8"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	DeviceID     string `json:"deviceId" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LogoutRequest ends the session bound to a device.
type LogoutRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

// ChangePasswordRequest for password change
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,nefield=OldPassword"`
}

// SetPasswordRequest sets a first password on an OAuth-only account.
type SetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// JoinAdminRequest promotes the caller when the secret matches.
type JoinAdminRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// OAuthLinkRequest links an external provider account.
type OAuthLinkRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

// AuthResponse is returned by login, register, refresh and OAuth userinfo.
type AuthResponse struct {
	AccessToken    string   `json:"accessToken" binding:"required"`
	RefreshToken   string   `json:"refreshToken" binding:"required"`
	ID             string   `json:"id" binding:"required"`
	Username       string   `json:"username" binding:"required"`
	AvatarURL      string   `json:"avatarUrl"`
	IsAdmin        bool     `json:"isAdmin"`
	OAuthProviders []string `json:"oauthProviders"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	AvatarURL      string   `json:"avatarUrl"`
	IsAdmin        bool     `json:"isAdmin"`
	OAuthProviders []string `json:"oauthProviders"`
}

// SupportedProviders lists the OAuth providers accounts can be linked with.
var SupportedProviders = []string{"github", "google"}

// IsSupportedProvider reports whether p is a known provider.
func IsSupportedProvider(p string) bool {
	for _, s := range SupportedProviders {
		if s == p {
			return true
		}
	}
	return false
}

// OAuthAuthorizeRequest drives the development backend's stand-in for a
// provider redirect.
type OAuthAuthorizeRequest struct {
	External string `json:"external" binding:"required,min=1,max=64"`
}

// OAuthTokenResponse carries the hand-off token of a completed redirect.
type OAuthTokenResponse struct {
	Token string `json:"token"`
}
