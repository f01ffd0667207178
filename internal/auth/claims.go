package auth

import (
	"time"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// AccessClaims are the claims carried by an access token. v4.local tokens are
// encrypted, so they are opaque to clients.
type AccessClaims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// User returns the identity the token was issued for.
func (c *AccessClaims) User() *domain.User {
	return &domain.User{
		ID:          c.UserID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}
