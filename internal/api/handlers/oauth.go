package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/oauth"
	"github.com/bimhub/bimhub/pkg/store"
)

// OAuthHandler handles the authorization code and token endpoints.
type OAuthHandler struct {
	service *oauth.Service
	store   store.Store
}

// NewOAuthHandler creates an OAuth handler.
func NewOAuthHandler(service *oauth.Service, st store.Store) *OAuthHandler {
	return &OAuthHandler{service: service, store: st}
}

// writeOAuthError writes an RFC 6749 error body.
func writeOAuthError(w http.ResponseWriter, status int, oerr *oauth.Error) {
	WriteJSON(w, status, oerr)
}

// Authorize handles POST /oauth/authorize.
// The caller is the authenticated resource owner approving the client.
// Invalid client or redirect URI answers directly; everything else is
// reported on the redirect URI per RFC 6749 section 4.1.2.1.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, &oauth.Error{
			Code:        oauth.ErrorCodeInvalidRequest,
			Description: "malformed form body",
		})
		return
	}

	req := oauth.AuthorizeRequest{
		ResponseType:        r.Form.Get("response_type"),
		ClientID:            r.Form.Get("client_id"),
		RedirectURI:         r.Form.Get("redirect_uri"),
		Scope:               r.Form.Get("scope"),
		State:               r.Form.Get("state"),
		CodeChallenge:       r.Form.Get("code_challenge"),
		CodeChallengeMethod: r.Form.Get("code_challenge_method"),
	}

	app, scopes, authErr := h.service.ValidateAuthorize(r.Context(), req)
	if authErr != nil {
		h.writeAuthorizeError(w, r, authErr)
		return
	}

	// The resource owner must be a member of the app's workspace, and a
	// tenant-bound token cannot approve apps in another workspace.
	denied := p.TenantBound() && p.WorkspaceID != app.WorkspaceID
	if !denied {
		if _, err := h.store.GetWorkspaceMembership(r.Context(), app.WorkspaceID, p.UserID); err != nil {
			if errors.Is(err, models.ErrMembershipNotFound) {
				denied = true
			} else {
				WriteDomainError(w, r, err)
				return
			}
		}
	}
	if denied {
		h.redirectError(w, r, req, oauth.ErrorCodeAccessDenied, "resource owner is not a member of the application workspace")
		return
	}

	redirectURL, err := h.service.IssueCode(r.Context(), app, p.UserID, req, scopes)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// writeAuthorizeError answers a failed authorize request, redirecting
// when the redirect URI itself validated.
func (h *OAuthHandler) writeAuthorizeError(w http.ResponseWriter, r *http.Request, authErr *oauth.AuthorizeError) {
	if authErr.Redirectable() {
		redirectURL, err := oauth.ErrorRedirectURL(authErr)
		if err == nil {
			http.Redirect(w, r, redirectURL, http.StatusFound)
			return
		}
		logger.WarnCtx(r.Context(), "failed to build oauth error redirect", "error", err)
	}
	writeOAuthError(w, http.StatusBadRequest, authErr.Err)
}

// redirectError sends an error to a validated redirect URI.
func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, req oauth.AuthorizeRequest, code, description string) {
	values := url.Values{}
	values.Set("error", code)
	if description != "" {
		values.Set("error_description", description)
	}
	if req.State != "" {
		values.Set("state", req.State)
	}
	redirectURL, err := oauth.BuildRedirectURL(req.RedirectURI, values)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, &oauth.Error{Code: code, Description: description})
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Token handles POST /oauth/token.
// Unauthenticated; the grant itself carries the credentials.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, &oauth.Error{
			Code:        oauth.ErrorCodeInvalidRequest,
			Description: "malformed form body",
		})
		return
	}

	req := oauth.TokenRequest{
		GrantType:    r.Form.Get("grant_type"),
		Code:         r.Form.Get("code"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		CodeVerifier: r.Form.Get("code_verifier"),
		RefreshToken: r.Form.Get("refresh_token"),
	}
	// Confidential clients may send credentials via HTTP basic auth
	// instead of the form body.
	if clientID, clientSecret, ok := r.BasicAuth(); ok {
		req.ClientID = clientID
		req.ClientSecret = clientSecret
	}

	pair, err := h.service.Exchange(r.Context(), req, requestMeta(r))
	if err != nil {
		var oerr *oauth.Error
		if !errors.As(err, &oerr) {
			InternalServerError(w, r, err)
			return
		}
		switch oerr.Code {
		case oauth.ErrorCodeInvalidClient:
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
			writeOAuthError(w, http.StatusUnauthorized, oerr)
		case oauth.ErrorCodeServerError:
			writeOAuthError(w, http.StatusInternalServerError, oerr)
		default:
			writeOAuthError(w, http.StatusBadRequest, oerr)
		}
		return
	}

	// Token responses must not be cached.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	WriteJSONOK(w, pair)
}
