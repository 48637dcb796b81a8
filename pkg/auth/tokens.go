// Package auth issues and verifies the platform's credentials: HS256
// access tokens, opaque rotating refresh tokens, and personal access
// tokens. Opaque credentials are stored only as SHA-256 hashes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bimhub/bimhub/pkg/models"
)

// Common errors for token operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// JWTConfig holds configuration for JWT token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "bimhub"
	Issuer string

	// Audience is the token audience claim. Default: "bimhub-api"
	Audience string

	// AccessTokenDuration is the lifetime of access tokens. Default: 1 hour.
	AccessTokenDuration time.Duration

	// RefreshTokenDuration is the lifetime of refresh tokens. Default: 30 days.
	RefreshTokenDuration time.Duration

	// PATDuration is the default lifetime of personal access tokens
	// when the caller does not pick one. Default: 90 days.
	PATDuration time.Duration

	// AuthCodeDuration is the lifetime of authorization codes. Default: 10 minutes.
	AuthCodeDuration time.Duration
}

// JWTService handles access token generation and validation.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}

	// Apply defaults
	if config.Issuer == "" {
		config.Issuer = "bimhub"
	}
	if config.Audience == "" {
		config.Audience = "bimhub-api"
	}
	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = time.Hour
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = 30 * 24 * time.Hour
	}
	if config.PATDuration == 0 {
		config.PATDuration = 90 * 24 * time.Hour
	}
	if config.AuthCodeDuration == 0 {
		config.AuthCodeDuration = 10 * time.Minute
	}

	return &JWTService{config: config}, nil
}

// GenerateAccessToken creates a signed access token for the user, bound
// to a workspace and scope list. clientID is empty for tokens minted
// outside the OAuth flow.
func (s *JWTService) GenerateAccessToken(userID, workspaceID, clientID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.config.Issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope:       models.JoinScopes(scopes),
		WorkspaceID: workspaceID,
		ClientID:    clientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, ErrTokenSigningFailed
	}

	return signedToken, expiresAt, nil
}

// ValidateAccessToken validates a signed access token and returns the
// claims. The issuer and audience must match the service configuration.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.config.Secret), nil
		},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetAccessTokenDuration returns the configured access token duration.
func (s *JWTService) GetAccessTokenDuration() time.Duration {
	return s.config.AccessTokenDuration
}

// GetRefreshTokenDuration returns the configured refresh token duration.
func (s *JWTService) GetRefreshTokenDuration() time.Duration {
	return s.config.RefreshTokenDuration
}

// GetPATDuration returns the configured default PAT duration.
func (s *JWTService) GetPATDuration() time.Duration {
	return s.config.PATDuration
}

// GetAuthCodeDuration returns the configured authorization code duration.
func (s *JWTService) GetAuthCodeDuration() time.Duration {
	return s.config.AuthCodeDuration
}
