package oauth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// Service runs the authorization-code flow against the client registry
// and the entity store.
type Service struct {
	store  store.Store
	tokens *auth.TokenService
}

// NewService creates an OAuth flow service.
func NewService(st store.Store, tokens *auth.TokenService) *Service {
	return &Service{store: st, tokens: tokens}
}

// AuthorizeRequest carries the authorization endpoint parameters.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ValidateAuthorize resolves the client and checks the request up to the
// consent step. Client resolution and redirect URI verification fail
// with non-redirectable errors; everything after redirects back with the
// state.
func (s *Service) ValidateAuthorize(ctx context.Context, req AuthorizeRequest) (*models.OAuthApp, []string, *AuthorizeError) {
	app, err := s.store.GetOAuthAppByClientID(ctx, req.ClientID)
	if err != nil || !app.IsEnabled {
		return nil, nil, renderError(ErrorCodeInvalidClient, "unknown or disabled client")
	}

	if !app.HasRedirectURI(req.RedirectURI) {
		return nil, nil, renderError(ErrorCodeInvalidRequest, "redirect_uri is not registered for this client")
	}

	// The client and redirect URI are verified; errors redirect from here on.
	if req.ResponseType != "code" {
		return nil, nil, redirectError(req.RedirectURI, req.State,
			ErrorCodeUnsupportedResponse, "only response_type=code is supported")
	}

	scopes := models.SplitScopes(req.Scope)
	if err := models.ValidateScopes(scopes); err != nil {
		return nil, nil, redirectError(req.RedirectURI, req.State,
			ErrorCodeInvalidScope, "unknown scope requested")
	}
	if !app.AllowsScopes(scopes) {
		return nil, nil, redirectError(req.RedirectURI, req.State,
			ErrorCodeInvalidScope, "requested scope exceeds the client's registered scopes")
	}

	if app.ClientType == models.ClientTypePublic {
		if req.CodeChallenge == "" {
			return nil, nil, redirectError(req.RedirectURI, req.State,
				ErrorCodeInvalidRequest, "code_challenge is required for public clients")
		}
		method := models.CodeChallengeMethod(req.CodeChallengeMethod)
		if method != models.CodeChallengeS256 && method != models.CodeChallengePlain {
			return nil, nil, redirectError(req.RedirectURI, req.State,
				ErrorCodeInvalidRequest, "unsupported code_challenge_method")
		}
	}

	return app, scopes, nil
}

// IssueCode persists a hashed single-use authorization code for the
// consenting user and returns the raw code plus the redirect URL
// carrying code and state.
func (s *Service) IssueCode(ctx context.Context, app *models.OAuthApp, userID string, req AuthorizeRequest, scopes []string) (string, error) {
	rawCode, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	code := &models.AuthorizationCode{
		CodeHash:            auth.HashToken(rawCode),
		OAuthAppID:          app.ID,
		UserID:              userID,
		WorkspaceID:         app.WorkspaceID,
		Scopes:              models.StringSlice(scopes),
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: models.CodeChallengeMethod(req.CodeChallengeMethod),
		ExpiresAt:           time.Now().Add(s.tokens.JWT().GetAuthCodeDuration()),
	}
	if _, err := s.store.CreateAuthorizationCode(ctx, code); err != nil {
		return "", fmt.Errorf("failed to store authorization code: %w", err)
	}

	return BuildRedirectURL(req.RedirectURI, url.Values{
		"code":  {rawCode},
		"state": {req.State},
	})
}

// BuildRedirectURL appends query parameters to a registered redirect URI,
// preserving any parameters the URI already carries.
func BuildRedirectURL(redirectURI string, params url.Values) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect uri: %w", err)
	}
	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ErrorRedirectURL renders a redirectable authorize error as the
// client-facing redirect URL.
func ErrorRedirectURL(e *AuthorizeError) (string, error) {
	return BuildRedirectURL(e.RedirectURI, url.Values{
		"error":             {e.Err.Code},
		"error_description": {e.Err.Description},
		"state":             {e.State},
	})
}
