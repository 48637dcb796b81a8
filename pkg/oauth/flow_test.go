//go:build integration

package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

const redirectURI = "https://app.example.com/callback"

func newTestService(t *testing.T) (*Service, *store.GORMStore) {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "oauth-test-secret-that-is-long-enough"})
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	return NewService(st, auth.NewTokenService(jwtService, st)), st
}

func seedApp(t *testing.T, st *store.GORMStore, clientType models.ClientType, secretHash string) (*models.OAuthApp, string) {
	t.Helper()
	ctx := context.Background()

	userID, err := st.CreateUser(ctx, &models.User{Subject: "oauth-test-user"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	workspaceID, err := st.CreateWorkspace(ctx, &models.Workspace{Name: "oauth-ws"}, userID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	clientID, err := NewClientID()
	if err != nil {
		t.Fatalf("NewClientID failed: %v", err)
	}
	app := &models.OAuthApp{
		WorkspaceID:      workspaceID,
		Name:             "test-app",
		ClientType:       clientType,
		ClientID:         clientID,
		ClientSecretHash: secretHash,
		RedirectURIs:     models.StringSlice{redirectURI},
		AllowedScopes:    models.StringSlice{models.ScopeProjectsRead, models.ScopeFilesRead},
		IsEnabled:        true,
		CreatedByUserID:  userID,
	}
	if _, err := st.CreateOAuthApp(ctx, app); err != nil {
		t.Fatalf("failed to create oauth app: %v", err)
	}
	return app, userID
}

func authorizeAndGetCode(t *testing.T, svc *Service, app *models.OAuthApp, userID, challenge, method string) string {
	t.Helper()
	ctx := context.Background()

	req := AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            app.ClientID,
		RedirectURI:         redirectURI,
		Scope:               models.ScopeProjectsRead,
		State:               "st-123",
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}
	validated, scopes, aerr := svc.ValidateAuthorize(ctx, req)
	if aerr != nil {
		t.Fatalf("ValidateAuthorize failed: %v", aerr)
	}
	redirect, err := svc.IssueCode(ctx, validated, userID, req, scopes)
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("redirect URL does not parse: %v", err)
	}
	if u.Query().Get("state") != "st-123" {
		t.Errorf("state not echoed in %q", redirect)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatal("redirect URL carries no code")
	}
	return code
}

func TestValidateAuthorize_ErrorChannels(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	app, _ := seedApp(t, st, models.ClientTypePublic, "")

	// Unknown client and wrong redirect URI must never redirect.
	_, _, aerr := svc.ValidateAuthorize(ctx, AuthorizeRequest{ClientID: "nope", RedirectURI: redirectURI})
	if aerr == nil || aerr.Redirectable() {
		t.Errorf("unknown client: got %v, want render-only error", aerr)
	}
	_, _, aerr = svc.ValidateAuthorize(ctx, AuthorizeRequest{ClientID: app.ClientID, RedirectURI: "https://evil.example.com/cb"})
	if aerr == nil || aerr.Redirectable() {
		t.Errorf("unregistered redirect: got %v, want render-only error", aerr)
	}

	// Everything past client + redirect checks redirects with the state.
	cases := []struct {
		name string
		req  AuthorizeRequest
		code string
	}{
		{
			name: "wrong response type",
			req:  AuthorizeRequest{ResponseType: "token", ClientID: app.ClientID, RedirectURI: redirectURI, State: "s"},
			code: ErrorCodeUnsupportedResponse,
		},
		{
			name: "unknown scope",
			req:  AuthorizeRequest{ResponseType: "code", ClientID: app.ClientID, RedirectURI: redirectURI, Scope: "bogus:scope", State: "s"},
			code: ErrorCodeInvalidScope,
		},
		{
			name: "scope beyond registration",
			req:  AuthorizeRequest{ResponseType: "code", ClientID: app.ClientID, RedirectURI: redirectURI, Scope: models.ScopeModelsWrite, State: "s"},
			code: ErrorCodeInvalidScope,
		},
		{
			name: "public client without challenge",
			req:  AuthorizeRequest{ResponseType: "code", ClientID: app.ClientID, RedirectURI: redirectURI, Scope: models.ScopeProjectsRead, State: "s"},
			code: ErrorCodeInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, aerr := svc.ValidateAuthorize(ctx, tc.req)
			if aerr == nil {
				t.Fatal("expected an error")
			}
			if !aerr.Redirectable() {
				t.Error("expected a redirectable error")
			}
			if aerr.Err.Code != tc.code {
				t.Errorf("error code = %q, want %q", aerr.Err.Code, tc.code)
			}
			redirect, err := ErrorRedirectURL(aerr)
			if err != nil {
				t.Fatalf("ErrorRedirectURL failed: %v", err)
			}
			if !strings.Contains(redirect, "state=s") {
				t.Errorf("redirect %q does not echo state", redirect)
			}
		})
	}
}

func TestExchange_AuthorizationCodeWithPKCE(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	app, userID := seedApp(t, st, models.ClientTypePublic, "")

	verifier := "correct-horse-battery-staple-verifier"
	code := authorizeAndGetCode(t, svc, app, userID, ComputeS256Challenge(verifier), "S256")

	pair, err := svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		CodeVerifier: verifier,
	}, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("exchange returned an incomplete token pair")
	}
	if pair.Scope != models.ScopeProjectsRead {
		t.Errorf("scope = %q, want %q", pair.Scope, models.ScopeProjectsRead)
	}

	// The code is single use.
	_, err = svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		CodeVerifier: verifier,
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchange_WrongVerifierBurnsCode(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	app, userID := seedApp(t, st, models.ClientTypePublic, "")

	verifier := "the-real-verifier-string-goes-here"
	code := authorizeAndGetCode(t, svc, app, userID, ComputeS256Challenge(verifier), "S256")

	_, err := svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		CodeVerifier: "wrong-verifier",
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)

	// The failed attempt burned the code; the right verifier is too late.
	_, err = svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		CodeVerifier: verifier,
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchange_ConfidentialClientSecret(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	rawSecret, secretHash, err := NewClientSecret()
	if err != nil {
		t.Fatalf("NewClientSecret failed: %v", err)
	}
	app, userID := seedApp(t, st, models.ClientTypeConfidential, secretHash)
	code := authorizeAndGetCode(t, svc, app, userID, "", "")

	_, err = svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		ClientSecret: "not-the-secret",
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidClient)

	pair, err := svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		ClientSecret: rawSecret,
	}, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Error("exchange returned no access token")
	}
}

func TestExchange_RefreshGrantAndReuse(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	app, userID := seedApp(t, st, models.ClientTypePublic, "")

	verifier := "refresh-grant-verifier-string-here"
	code := authorizeAndGetCode(t, svc, app, userID, ComputeS256Challenge(verifier), "S256")

	pair, err := svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  redirectURI,
		ClientID:     app.ClientID,
		CodeVerifier: verifier,
	}, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	refreshed, err := svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: pair.RefreshToken,
	}, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("refresh exchange failed: %v", err)
	}

	// Replaying the rotated-out token fails and poisons the family.
	_, err = svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: pair.RefreshToken,
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)

	_, err = svc.Exchange(ctx, TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: refreshed.RefreshToken,
	}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestExchange_UnsupportedGrantType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Exchange(context.Background(), TokenRequest{GrantType: "password"}, auth.RequestMeta{})
	assertOAuthError(t, err, ErrorCodeUnsupportedGrantType)
}

func assertOAuthError(t *testing.T, err error, code string) {
	t.Helper()
	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *oauth.Error, got %v", err)
	}
	if oerr.Code != code {
		t.Errorf("error code = %q, want %q", oerr.Code, code)
	}
}
