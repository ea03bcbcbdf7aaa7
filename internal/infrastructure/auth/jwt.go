// Package auth issues and verifies access tokens for the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN MANAGER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidToken is returned for malformed, tampered, or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrNoSecret is returned when the manager is built without a signing secret.
	ErrNoSecret = errors.New("jwt secret is required")
)

// Claims carries the identity embedded in an access token.
type Claims struct {
	// UserID is the authenticated user's internal ID.
	UserID string `json:"uid"`

	// Username is the authenticated user's handle.
	Username string `json:"username"`

	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// TokenManagerConfig contains settings for the TokenManager.
type TokenManagerConfig struct {
	// Secret is the HMAC signing key.
	Secret string

	// Issuer is the iss claim on issued tokens.
	Issuer string

	// TTL is the access token lifetime.
	TTL time.Duration
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(config TokenManagerConfig) (*TokenManager, error) {
	if config.Secret == "" {
		return nil, ErrNoSecret
	}
	if config.Issuer == "" {
		config.Issuer = "kumotsudai-hub"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(config.Secret),
		issuer: config.Issuer,
		ttl:    config.TTL,
	}, nil
}

// Issue creates a signed access token for the given user.
func (m *TokenManager) Issue(userID, username string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(m.ttl)

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning its claims.
func (m *TokenManager) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}
