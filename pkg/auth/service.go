package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// TokenPair contains both access and refresh tokens.
type TokenPair struct {
	// AccessToken is the short-lived token for API authorization.
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived opaque token for obtaining new
	// access tokens.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// ExpiresAt is the access token expiration time.
	ExpiresAt time.Time `json:"expires_at"`

	// Scope is the space-separated granted scope list.
	Scope string `json:"scope,omitempty"`
}

// RequestMeta carries client metadata recorded against issued tokens.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// TokenService issues and redeems credentials against the control
// plane store.
type TokenService struct {
	jwt   *JWTService
	store store.Store
}

// NewTokenService creates a token service.
func NewTokenService(jwtService *JWTService, st store.Store) *TokenService {
	return &TokenService{jwt: jwtService, store: st}
}

// JWT returns the underlying JWT service.
func (s *TokenService) JWT() *JWTService {
	return s.jwt
}

// IssueTokenPair mints an access token and a fresh refresh token family
// for the user. oauthAppID and clientID are empty for tokens minted
// outside the OAuth flow.
func (s *TokenService) IssueTokenPair(ctx context.Context, userID, workspaceID, oauthAppID, clientID string, scopes []string, meta RequestMeta) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwt.GenerateAccessToken(userID, workspaceID, clientID, scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	rawRefresh, err := GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	record := &models.RefreshToken{
		TokenHash:     HashToken(rawRefresh),
		OAuthAppID:    oauthAppID,
		UserID:        userID,
		WorkspaceID:   workspaceID,
		Scopes:        models.StringSlice(scopes),
		ExpiresAt:     now.Add(s.jwt.GetRefreshTokenDuration()),
		TokenFamilyID: uuid.New().String(),
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	}
	if _, err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.GetAccessTokenDuration().Seconds()),
		ExpiresAt:    expiresAt,
		Scope:        models.JoinScopes(scopes),
	}, nil
}

// RefreshTokenPair rotates the presented refresh token and mints a new
// access token carrying the original grant's scopes. Reuse of a rotated
// token surfaces as models.ErrTokenReuseDetected after the whole family
// has been revoked.
func (s *TokenService) RefreshTokenPair(ctx context.Context, rawRefresh string, meta RequestMeta) (*TokenPair, error) {
	rawSuccessor, err := GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	successor := &models.RefreshToken{
		TokenHash: HashToken(rawSuccessor),
		ExpiresAt: now.Add(s.jwt.GetRefreshTokenDuration()),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	rotated, err := s.store.RotateRefreshToken(ctx, HashToken(rawRefresh), successor, now)
	if err != nil {
		return nil, err
	}

	scopes := []string(rotated.Scopes)
	clientID := ""
	if rotated.OAuthAppID != "" {
		app, err := s.store.GetOAuthApp(ctx, rotated.OAuthAppID)
		if err == nil {
			clientID = app.ClientID
		}
	}

	accessToken, expiresAt, err := s.jwt.GenerateAccessToken(rotated.UserID, rotated.WorkspaceID, clientID, scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawSuccessor,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.GetAccessTokenDuration().Seconds()),
		ExpiresAt:    expiresAt,
		Scope:        models.JoinScopes(scopes),
	}, nil
}

// RevokeRefreshToken revokes the presented refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, rawRefresh string) error {
	return s.store.RevokeRefreshToken(ctx, HashToken(rawRefresh), time.Now())
}

// VerifyPAT resolves a raw personal access token to its record. Revoked
// tokens return models.ErrPATRevoked, expired ones ErrExpiredToken.
// Last-use metadata is recorded best effort.
func (s *TokenService) VerifyPAT(ctx context.Context, raw, ipAddress string) (*models.PersonalAccessToken, error) {
	if !IsPAT(raw) {
		return nil, ErrInvalidToken
	}

	pat, err := s.store.GetPersonalAccessTokenByHash(ctx, HashToken(raw))
	if err != nil {
		return nil, err
	}
	if !VerifyTokenHash(raw, pat.TokenHash) {
		return nil, ErrInvalidToken
	}
	if pat.IsRevoked {
		return nil, models.ErrPATRevoked
	}
	if time.Now().After(pat.ExpiresAt) {
		return nil, ErrExpiredToken
	}

	_ = s.store.TouchPersonalAccessToken(ctx, pat.ID, ipAddress, time.Now())
	return pat, nil
}
