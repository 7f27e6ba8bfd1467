// internal/domain/auth/entity.go
package auth

import (
	"sort"
	"time"
)

// Account is a user as the backend stores it.
type Account struct {
	ID           string
	Username     string
	PasswordHash string // empty for OAuth-only accounts
	AvatarURL    string
	IsAdmin      bool
	OAuth        map[string]string // provider -> external account
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Providers lists the linked OAuth providers in stable order.
func (a *Account) Providers() []string {
	out := make([]string, 0, len(a.OAuth))
	for p := range a.OAuth {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPassword reports whether the account can sign in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// Info is the public view of the account.
func (a *Account) Info() UserInfo {
	return UserInfo{
		ID:             a.ID,
		Username:       a.Username,
		AvatarURL:      a.AvatarURL,
		IsAdmin:        a.IsAdmin,
		OAuthProviders: a.Providers(),
	}
}

// RefreshSession is the server-side record behind a refresh token.
type RefreshSession struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
