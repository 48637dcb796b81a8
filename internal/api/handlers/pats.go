package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// PATHandler handles personal access token management.
type PATHandler struct {
	store   store.Store
	tokens  *auth.TokenService
	checker *authz.Checker
}

// NewPATHandler creates a PAT handler.
func NewPATHandler(st store.Store, tokens *auth.TokenService, checker *authz.Checker) *PATHandler {
	return &PATHandler{store: st, tokens: tokens, checker: checker}
}

// CreatePATRequest is the request body for POST /workspaces/{id}/pats.
// ExpiresIn is a duration string; empty means the configured default
// lifetime.
type CreatePATRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Scopes      []string `json:"scopes"`
	ExpiresIn   string   `json:"expires_in,omitempty"`
}

// PATCreatedResponse carries the raw token exactly once.
type PATCreatedResponse struct {
	Token string                      `json:"token"`
	PAT   *models.PersonalAccessToken `json:"pat"`
}

// Create handles POST /workspaces/{id}/pats.
// Any workspace member can mint tokens for themselves; the token's
// scopes are fixed at creation and never widen.
func (h *PATHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopePATsWrite), models.WorkspaceRoleGuest) {
		return
	}

	var req CreatePATRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, r, "Name is required")
		return
	}
	if len(req.Scopes) == 0 {
		BadRequest(w, r, "At least one scope is required")
		return
	}
	if err := models.ValidateScopes(req.Scopes); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	lifetime := h.tokens.JWT().GetPATDuration()
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			BadRequest(w, r, "expires_in must be a positive duration such as '720h'")
			return
		}
		lifetime = d
	}

	raw, hash, prefix, err := auth.GeneratePAT()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	pat := &models.PersonalAccessToken{
		TokenHash:            hash,
		TokenPrefix:          prefix,
		UserID:               p.UserID,
		WorkspaceID:          workspaceID,
		Name:                 req.Name,
		Description:          req.Description,
		Scopes:               req.Scopes,
		ExpiresAt:            time.Now().Add(lifetime),
		CreatedFromIPAddress: requestMeta(r).IPAddress,
	}
	if _, err := h.store.CreatePersonalAccessToken(r.Context(), pat); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, pat.ID, models.AuditEventCreated, p.UserID, "token created")

	WriteJSONCreated(w, PATCreatedResponse{Token: raw, PAT: pat})
}

// List handles GET /workspaces/{id}/pats.
// Callers see their own tokens; the pats:admin scope widens the listing
// to the whole workspace.
func (h *PATHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopePATsRead), models.WorkspaceRoleGuest) {
		return
	}

	userFilter := p.UserID
	if slices.Contains(p.Scopes, models.ScopePATsAdmin) {
		userFilter = ""
	}
	pats, err := h.store.ListPersonalAccessTokens(r.Context(), workspaceID, userFilter)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(pats, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// resolvePAT loads the token record and authorizes the caller. Reading
// or revoking another user's token requires the pats:admin scope.
func (h *PATHandler) resolvePAT(w http.ResponseWriter, r *http.Request, p authz.Principal,
	ownScope string) (*models.PersonalAccessToken, bool) {

	id := chi.URLParam(r, "id")
	pat, err := h.store.GetPersonalAccessToken(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}

	scopes := authz.RequireAny(ownScope)
	if pat.UserID != p.UserID {
		scopes = authz.RequireAny(models.ScopePATsAdmin)
	}
	if !checkWorkspace(w, r, h.checker, p, pat.WorkspaceID, scopes, models.WorkspaceRoleGuest) {
		return nil, false
	}
	return pat, true
}

// Get handles GET /pats/{id}.
func (h *PATHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pat, ok := h.resolvePAT(w, r, p, models.ScopePATsRead)
	if !ok {
		return
	}
	WriteJSONOK(w, pat)
}

// Revoke handles DELETE /pats/{id}.
// Revocation is permanent; a revoked token is rejected on its next use.
func (h *PATHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pat, ok := h.resolvePAT(w, r, p, models.ScopePATsWrite)
	if !ok {
		return
	}

	if err := h.store.RevokePersonalAccessToken(r.Context(), pat.ID, models.RevokedReasonUserRequest, time.Now()); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.audit(r, pat.ID, models.AuditEventRevoked, p.UserID, "token revoked")
	WriteNoContent(w)
}

// ListAudit handles GET /pats/{id}/audit.
func (h *PATHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pat, ok := h.resolvePAT(w, r, p, models.ScopePATsRead)
	if !ok {
		return
	}

	entries, err := h.store.ListPersonalAccessTokenAudit(r.Context(), pat.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(entries, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// audit appends a PAT audit entry. Failures are logged, never surfaced.
func (h *PATHandler) audit(r *http.Request, patID, eventType, actorUserID, details string) {
	meta := requestMeta(r)
	_, err := h.store.AppendPersonalAccessTokenAudit(r.Context(), &models.PersonalAccessTokenAuditLog{
		SubjectID:   patID,
		EventType:   eventType,
		ActorUserID: actorUserID,
		Details:     details,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	if err != nil {
		logger.WarnCtx(r.Context(), "failed to append pat audit entry", "pat_id", patID, "event", eventType, "error", err)
	}
}
