// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv       *rsa.PrivateKey
	issuer     string
	audience   string
	kid        string // key id for rotation
	Ttl        time.Duration
	RefreshTtl time.Duration
	now        func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl, refreshTTL time.Duration) *Generator {
	return &Generator{
		priv:       priv,
		issuer:     issuer,
		audience:   audience,
		kid:        kid,
		Ttl:        ttl,
		RefreshTtl: refreshTTL,
		now:        time.Now,
	}
}

// Generate signs claims for subject with the given purpose and lifetime.
// It returns the token and its JTI.
func (g *Generator) Generate(subject string, claims Claims, ttl time.Duration) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := g.now()
	jti := ulid.Make().String()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Subject:   subject,
		Audience:  []string{g.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        jti,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken generates a short-lived access token
func (g *Generator) GenerateAccessToken(userID, username string, isAdmin bool, device string) (string, string, error) {
	return g.Generate(userID, Claims{
		Username: username,
		IsAdmin:  isAdmin,
		Device:   device,
		Purpose:  PurposeAccess,
	}, g.Ttl)
}

// GenerateRefreshToken generates a refresh token bound to a device
func (g *Generator) GenerateRefreshToken(userID, device string) (string, string, error) {
	return g.Generate(userID, Claims{Device: device, Purpose: PurposeRefresh}, g.RefreshTtl)
}

// GenerateOAuthToken mints the token an OAuth provider redirect hands to the
// client. Subject is the external account name; linkUserID is set when the
// flow was started to link an existing account.
func (g *Generator) GenerateOAuthToken(provider, externalUser, linkUserID string) (string, string, error) {
	return g.Generate(externalUser, Claims{Provider: provider, LinkUser: linkUserID, Purpose: PurposeOAuth}, 10*time.Minute)
}
