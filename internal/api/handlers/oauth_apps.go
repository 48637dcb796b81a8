package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/oauth"
	"github.com/bimhub/bimhub/pkg/store"
)

// OAuthAppHandler handles OAuth client registration management.
type OAuthAppHandler struct {
	store   store.Store
	checker *authz.Checker
}

// NewOAuthAppHandler creates an OAuth app handler.
func NewOAuthAppHandler(st store.Store, checker *authz.Checker) *OAuthAppHandler {
	return &OAuthAppHandler{store: st, checker: checker}
}

// CreateOAuthAppRequest is the request body for POST /workspaces/{id}/oauth-apps.
type CreateOAuthAppRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ClientType    string   `json:"client_type"`
	RedirectURIs  []string `json:"redirect_uris"`
	AllowedScopes []string `json:"allowed_scopes"`
}

// OAuthAppCreatedResponse carries the one-time client secret for
// confidential clients. The secret is never retrievable afterwards.
type OAuthAppCreatedResponse struct {
	App          *models.OAuthApp `json:"app"`
	ClientSecret string           `json:"client_secret,omitempty"`
}

// UpdateOAuthAppRequest is the request body for PATCH /oauth-apps/{id}.
type UpdateOAuthAppRequest struct {
	Name          *string   `json:"name,omitempty"`
	Description   *string   `json:"description,omitempty"`
	RedirectURIs  *[]string `json:"redirect_uris,omitempty"`
	AllowedScopes *[]string `json:"allowed_scopes,omitempty"`
	IsEnabled     *bool     `json:"is_enabled,omitempty"`
}

// validateRedirectURIs rejects relative or fragment-carrying URIs.
func validateRedirectURIs(uris []string) bool {
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return false
		}
	}
	return true
}

// Create handles POST /workspaces/{id}/oauth-apps.
func (h *OAuthAppHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopeOAuthAppsWrite), models.WorkspaceRoleAdmin) {
		return
	}

	var req CreateOAuthAppRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	clientType := models.ClientType(req.ClientType)
	if !clientType.IsValid() {
		BadRequest(w, r, "client_type must be 'public' or 'confidential'")
		return
	}
	if len(req.RedirectURIs) == 0 || !validateRedirectURIs(req.RedirectURIs) {
		BadRequest(w, r, "At least one absolute redirect URI without a fragment is required")
		return
	}
	if err := models.ValidateScopes(req.AllowedScopes); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	clientID, err := oauth.NewClientID()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	app := &models.OAuthApp{
		WorkspaceID:     workspaceID,
		Name:            req.Name,
		Description:     req.Description,
		ClientType:      clientType,
		ClientID:        clientID,
		RedirectURIs:    req.RedirectURIs,
		AllowedScopes:   req.AllowedScopes,
		IsEnabled:       true,
		CreatedByUserID: p.UserID,
	}

	var rawSecret string
	if clientType == models.ClientTypeConfidential {
		raw, hash, err := oauth.NewClientSecret()
		if err != nil {
			InternalServerError(w, r, err)
			return
		}
		rawSecret = raw
		app.ClientSecretHash = hash
	}

	if err := app.Validate(); err != nil {
		BadRequest(w, r, capitalize(err.Error()))
		return
	}
	if _, err := h.store.CreateOAuthApp(r.Context(), app); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, app.ID, models.AuditEventCreated, p.UserID, "app registered")

	WriteJSONCreated(w, OAuthAppCreatedResponse{App: app, ClientSecret: rawSecret})
}

// List handles GET /workspaces/{id}/oauth-apps.
func (h *OAuthAppHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopeOAuthAppsRead), models.WorkspaceRoleAdmin) {
		return
	}

	apps, err := h.store.ListOAuthApps(r.Context(), workspaceID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(apps, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// resolveApp loads the app and authorizes the caller against its
// workspace.
func (h *OAuthAppHandler) resolveApp(w http.ResponseWriter, r *http.Request, p authz.Principal,
	scopes authz.ScopeRequirement, minRole models.WorkspaceRole) (*models.OAuthApp, bool) {

	id := chi.URLParam(r, "id")
	app, err := h.store.GetOAuthApp(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	if !checkWorkspace(w, r, h.checker, p, app.WorkspaceID, scopes, minRole) {
		return nil, false
	}
	return app, true
}

// Get handles GET /oauth-apps/{id}.
func (h *OAuthAppHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	app, ok := h.resolveApp(w, r, p, authz.RequireAny(models.ScopeOAuthAppsRead), models.WorkspaceRoleAdmin)
	if !ok {
		return
	}
	WriteJSONOK(w, app)
}

// Update handles PATCH /oauth-apps/{id}.
// The client type and client id are immutable.
func (h *OAuthAppHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	app, ok := h.resolveApp(w, r, p, authz.RequireAny(models.ScopeOAuthAppsWrite), models.WorkspaceRoleAdmin)
	if !ok {
		return
	}

	var req UpdateOAuthAppRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, r, "Name must not be empty")
			return
		}
		app.Name = *req.Name
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.RedirectURIs != nil {
		if len(*req.RedirectURIs) == 0 || !validateRedirectURIs(*req.RedirectURIs) {
			BadRequest(w, r, "At least one absolute redirect URI without a fragment is required")
			return
		}
		app.RedirectURIs = *req.RedirectURIs
	}
	if req.AllowedScopes != nil {
		if err := models.ValidateScopes(*req.AllowedScopes); err != nil {
			WriteDomainError(w, r, err)
			return
		}
		app.AllowedScopes = *req.AllowedScopes
	}
	if req.IsEnabled != nil {
		app.IsEnabled = *req.IsEnabled
	}

	if err := h.store.UpdateOAuthApp(r.Context(), app); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, app.ID, models.AuditEventUpdated, p.UserID, "app updated")
	WriteJSONOK(w, app)
}

// Delete handles DELETE /oauth-apps/{id}.
// Deleting an app revokes every token issued through it.
func (h *OAuthAppHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	app, ok := h.resolveApp(w, r, p, authz.RequireAny(models.ScopeOAuthAppsAdmin), models.WorkspaceRoleAdmin)
	if !ok {
		return
	}

	if err := h.store.DeleteOAuthApp(r.Context(), app.ID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, app.ID, models.AuditEventRevoked, p.UserID, "app deleted")
	WriteNoContent(w)
}

// RotateSecretResponse carries the replacement client secret exactly
// once.
type RotateSecretResponse struct {
	ClientSecret string `json:"client_secret"`
}

// RotateSecret handles POST /oauth-apps/{id}/secret.
func (h *OAuthAppHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	app, ok := h.resolveApp(w, r, p, authz.RequireAny(models.ScopeOAuthAppsAdmin), models.WorkspaceRoleAdmin)
	if !ok {
		return
	}
	if app.ClientType != models.ClientTypeConfidential {
		BadRequest(w, r, "Public clients have no secret to rotate")
		return
	}

	raw, hash, err := oauth.NewClientSecret()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if err := h.store.UpdateOAuthAppSecret(r.Context(), app.ID, hash); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, app.ID, models.AuditEventSecretRotated, p.UserID, "client secret rotated")
	WriteJSONOK(w, RotateSecretResponse{ClientSecret: raw})
}

// ListAudit handles GET /oauth-apps/{id}/audit.
func (h *OAuthAppHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	app, ok := h.resolveApp(w, r, p, authz.RequireAny(models.ScopeOAuthAppsRead), models.WorkspaceRoleAdmin)
	if !ok {
		return
	}

	entries, err := h.store.ListOAuthAppAudit(r.Context(), app.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(entries, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// audit appends an app audit entry. Failures are logged, never
// surfaced: the primary operation already committed.
func (h *OAuthAppHandler) audit(r *http.Request, appID, eventType, actorUserID, details string) {
	meta := requestMeta(r)
	_, err := h.store.AppendOAuthAppAudit(r.Context(), &models.OAuthAppAuditLog{
		SubjectID:   appID,
		EventType:   eventType,
		ActorUserID: actorUserID,
		Details:     details,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	if err != nil {
		logger.WarnCtx(r.Context(), "failed to append oauth app audit entry", "app_id", appID, "event", eventType, "error", err)
	}
}
