package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	"github.com/stickynotes/stickynotes-server/internal/id"
)

const (
	tokenIssuer   = "stickynotes-server"
	tokenAudience = "stickynotes-client"
)

// ErrInvalidToken is returned for tokens that fail decryption or a claim rule.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", keySize, len(key))
	}
	if duration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", duration)
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create symmetric key: %w", err)
	}
	return &TokenService{key: k, duration: duration, now: time.Now}, nil
}

// Duration returns the access token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}

// Issue mints an access token for user.
func (s *TokenService) Issue(user *domain.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("token subject is required")
	}
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.duration))

	jti, err := id.Generate("tok")
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	token.SetJti(jti)

	//nolint:errcheck // Set only fails on unmarshalable values
	_ = token.Set("user_id", user.ID)
	//nolint:errcheck // Set only fails on unmarshalable values
	_ = token.Set("email", user.Email)
	if user.DisplayName != "" {
		//nolint:errcheck // Set only fails on unmarshalable values
		_ = token.Set("display_name", user.DisplayName)
	}
	if user.PhotoURL != "" {
		//nolint:errcheck // Set only fails on unmarshalable values
		_ = token.Set("photo_url", user.PhotoURL)
	}

	return token.V4Encrypt(s.key, nil), nil
}

// Verify decrypts token and checks its issuer, audience and validity window.
func (s *TokenService) Verify(token string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	parsed, err := parser.ParseV4Local(s.key, token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(parsed.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return &claims, nil
}
