package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/models"
)

// Grant types accepted by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// TokenRequest carries the token endpoint parameters.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
}

// Exchange runs the token endpoint for both grant types. Failures are
// returned as *Error in the RFC 6749 shape.
func (s *Service) Exchange(ctx context.Context, req TokenRequest, meta auth.RequestMeta) (*auth.TokenPair, error) {
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return s.exchangeCode(ctx, req, meta)
	case GrantTypeRefreshToken:
		return s.exchangeRefresh(ctx, req, meta)
	default:
		return nil, NewError(ErrorCodeUnsupportedGrantType, "supported grant types: authorization_code, refresh_token")
	}
}

// exchangeCode redeems an authorization code. The code is burned on the
// first redemption attempt; a failed PKCE or redirect check afterwards
// does not resurrect it.
func (s *Service) exchangeCode(ctx context.Context, req TokenRequest, meta auth.RequestMeta) (*auth.TokenPair, error) {
	if req.Code == "" {
		return nil, NewError(ErrorCodeInvalidRequest, "code is required")
	}

	app, err := s.store.GetOAuthAppByClientID(ctx, req.ClientID)
	if err != nil || !app.IsEnabled {
		return nil, NewError(ErrorCodeInvalidClient, "unknown or disabled client")
	}
	if app.ClientType == models.ClientTypeConfidential {
		if !VerifyClientSecret(app.ClientSecretHash, req.ClientSecret) {
			return nil, NewError(ErrorCodeInvalidClient, "client authentication failed")
		}
	}

	code, err := s.store.ConsumeAuthorizationCode(ctx, auth.HashToken(req.Code), time.Now())
	if err != nil {
		return nil, NewError(ErrorCodeInvalidGrant, "authorization code is invalid, expired, or already used")
	}

	if code.OAuthAppID != app.ID {
		return nil, NewError(ErrorCodeInvalidGrant, "authorization code was issued to a different client")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, NewError(ErrorCodeInvalidGrant, "redirect_uri does not match the authorization request")
	}
	if code.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, NewError(ErrorCodeInvalidRequest, "code_verifier is required")
		}
		if !VerifyPKCE(code.CodeChallengeMethod, code.CodeChallenge, req.CodeVerifier) {
			return nil, NewError(ErrorCodeInvalidGrant, "code_verifier does not match the code_challenge")
		}
	}

	pair, err := s.tokens.IssueTokenPair(ctx, code.UserID, code.WorkspaceID, app.ID, app.ClientID, []string(code.Scopes), meta)
	if err != nil {
		return nil, NewError(ErrorCodeServerError, "failed to issue tokens")
	}
	return pair, nil
}

// exchangeRefresh rotates a refresh token. Reuse of a rotated token
// comes back as invalid_grant after the family has been revoked.
func (s *Service) exchangeRefresh(ctx context.Context, req TokenRequest, meta auth.RequestMeta) (*auth.TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, NewError(ErrorCodeInvalidRequest, "refresh_token is required")
	}

	pair, err := s.tokens.RefreshTokenPair(ctx, req.RefreshToken, meta)
	if err != nil {
		if errors.Is(err, models.ErrRefreshNotFound) || errors.Is(err, models.ErrTokenReuseDetected) {
			return nil, NewError(ErrorCodeInvalidGrant, "refresh token is invalid, expired, or revoked")
		}
		return nil, NewError(ErrorCodeServerError, "failed to rotate refresh token")
	}
	return pair, nil
}
