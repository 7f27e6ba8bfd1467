// internal/pkg/session/types.go
package session

// UserRecord is the durable half of a session. It never carries the access token.
type UserRecord struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	AvatarURL      string   `json:"avatarUrl"`
	IsAdmin        bool     `json:"isAdmin"`
	OAuthProviders []string `json:"oauthProviders"`
	RefreshToken   string   `json:"refreshToken"`
}

func (u *UserRecord) clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	if u.OAuthProviders != nil {
		c.OAuthProviders = append([]string(nil), u.OAuthProviders...)
	}
	return &c
}

// HasProvider reports whether the account is linked with an OAuth provider.
func (u *UserRecord) HasProvider(provider string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.OAuthProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// Status is derived from the access token and user record.
type Status string

const (
	StatusAuthenticated   Status = "authenticated"
	StatusExpired         Status = "expired"
	StatusUnauthenticated Status = "unauthenticated"
)

// DeriveStatus is the pure status function over the two session fields.
func DeriveStatus(accessToken string, user *UserRecord) Status {
	switch {
	case accessToken != "":
		return StatusAuthenticated
	case user != nil:
		return StatusExpired
	default:
		return StatusUnauthenticated
	}
}

// DefaultKey is the namespaced key the persisted document lives under.
const DefaultKey = "blog-session:user-store"

// document is the persisted layout: { "user": UserRecord | null }.
type document struct {
	User *UserRecord `json:"user"`
}
