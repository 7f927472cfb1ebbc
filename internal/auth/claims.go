package auth

import (
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// Claims is the decrypted payload of an access token.
type Claims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// CanModerate reports whether the token holder may review suggestions
// and manage tags.
func (c *Claims) CanModerate() bool {
	return c.Role == domain.RoleModerator || c.Role == domain.RoleAdmin
}

// IsAdmin reports whether the token holder is an administrator.
func (c *Claims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}
