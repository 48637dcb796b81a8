package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// DefaultInviteTTL is how long a workspace invite stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// WorkspaceHandler handles workspace, membership, and invite endpoints.
type WorkspaceHandler struct {
	store   store.Store
	checker *authz.Checker
}

// NewWorkspaceHandler creates a workspace handler.
func NewWorkspaceHandler(st store.Store, checker *authz.Checker) *WorkspaceHandler {
	return &WorkspaceHandler{store: st, checker: checker}
}

// CreateWorkspaceRequest is the request body for POST /workspaces.
type CreateWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateWorkspaceRequest is the request body for PATCH /workspaces/{id}.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Create handles POST /workspaces.
// The creator becomes the workspace's Owner.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if !requireScopes(w, r, p, authz.RequireAny(models.ScopeWorkspacesWrite)) {
		return
	}

	var req CreateWorkspaceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, r, "Name is required")
		return
	}

	workspace := &models.Workspace{
		Name:        req.Name,
		Description: req.Description,
	}
	if _, err := h.store.CreateWorkspace(r.Context(), workspace, p.UserID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSONCreated(w, workspace)
}

// Get handles GET /workspaces/{id}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesRead), models.WorkspaceRoleGuest) {
		return
	}

	workspace, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	WriteJSONOK(w, workspace)
}

// List handles GET /workspaces.
// Lists the workspaces the caller belongs to.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if !requireScopes(w, r, p, authz.RequireAny(models.ScopeWorkspacesRead)) {
		return
	}

	workspaces, err := h.store.ListWorkspacesForUser(r.Context(), p.UserID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	// Tenant-bound tokens only see their own workspace.
	if p.TenantBound() {
		filtered := workspaces[:0]
		for _, ws := range workspaces {
			if ws.ID == p.WorkspaceID {
				filtered = append(filtered, ws)
			}
		}
		workspaces = filtered
	}

	page, pageSize := pageParams(r)
	items, total := pageOf(workspaces, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// Update handles PATCH /workspaces/{id}.
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), models.WorkspaceRoleAdmin) {
		return
	}

	var req UpdateWorkspaceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	workspace, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, r, "Name must not be empty")
			return
		}
		workspace.Name = *req.Name
	}
	if req.Description != nil {
		workspace.Description = *req.Description
	}

	if err := h.store.UpdateWorkspace(r.Context(), workspace); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, workspace)
}

// Delete handles DELETE /workspaces/{id}.
// Owner only; removes the workspace and everything it owns.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), models.WorkspaceRoleOwner) {
		return
	}

	if err := h.store.DeleteWorkspace(r.Context(), id); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// UpsertMemberRequest is the request body for POST /workspaces/{id}/members.
type UpsertMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// ListMembers handles GET /workspaces/{id}/members.
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesRead), models.WorkspaceRoleGuest) {
		return
	}

	memberships, err := h.store.ListWorkspaceMemberships(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(memberships, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// UpsertMember handles POST /workspaces/{id}/members.
// Creates or updates a member's role. Granting Owner requires the
// caller to be an Owner.
func (h *WorkspaceHandler) UpsertMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req UpsertMemberRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		BadRequest(w, r, "user_id is required")
		return
	}
	role, err := parseWorkspaceRole(req.Role)
	if err != nil {
		BadRequest(w, r, "Role must be 'guest', 'member', 'admin', or 'owner'")
		return
	}

	minRole := models.WorkspaceRoleAdmin
	if role == models.WorkspaceRoleOwner {
		minRole = models.WorkspaceRoleOwner
	}
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), minRole) {
		return
	}

	if _, err := h.store.GetUserByID(r.Context(), req.UserID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	membership := &models.WorkspaceMembership{
		WorkspaceID: id,
		UserID:      req.UserID,
		Role:        role,
	}
	if err := h.store.UpsertWorkspaceMembership(r.Context(), membership); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, membership)
}

// RemoveMember handles DELETE /workspaces/{id}/members/{userId}.
// Removing the last Owner is rejected.
func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), models.WorkspaceRoleAdmin) {
		return
	}

	if err := h.store.RemoveWorkspaceMembership(r.Context(), id, userID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// CreateInviteRequest is the request body for POST /workspaces/{id}/invites.
type CreateInviteRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// InviteCreatedResponse carries the raw invite token. It is shown
// exactly once; only its hash is stored.
type InviteCreatedResponse struct {
	Invite *models.WorkspaceInvite `json:"invite"`
	Token  string                  `json:"token"`
}

// CreateInvite handles POST /workspaces/{id}/invites.
func (h *WorkspaceHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), models.WorkspaceRoleAdmin) {
		return
	}

	var req CreateInviteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		BadRequest(w, r, "Email is required")
		return
	}
	role, err := parseWorkspaceRole(req.Role)
	if err != nil {
		BadRequest(w, r, "Role must be 'guest', 'member', 'admin', or 'owner'")
		return
	}
	if role == models.WorkspaceRoleOwner {
		BadRequest(w, r, "Ownership is not granted through invites")
		return
	}

	ttl := DefaultInviteTTL
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || parsed <= 0 {
			BadRequest(w, r, "expires_in must be a positive duration")
			return
		}
		ttl = parsed
	}

	rawToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	invite := &models.WorkspaceInvite{
		WorkspaceID: id,
		Email:       req.Email,
		Role:        role,
		TokenHash:   auth.HashToken(rawToken),
		ExpiresAt:   time.Now().Add(ttl),
	}
	if _, err := h.store.CreateWorkspaceInvite(r.Context(), invite); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSONCreated(w, InviteCreatedResponse{Invite: invite, Token: rawToken})
}

// ListInvites handles GET /workspaces/{id}/invites.
func (h *WorkspaceHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesRead), models.WorkspaceRoleAdmin) {
		return
	}

	invites, err := h.store.ListWorkspaceInvites(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(invites, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// RevokeInvite handles DELETE /workspaces/{id}/invites/{inviteId}.
func (h *WorkspaceHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	inviteID := chi.URLParam(r, "inviteId")
	if !checkWorkspace(w, r, h.checker, p, id, authz.RequireAny(models.ScopeWorkspacesWrite), models.WorkspaceRoleAdmin) {
		return
	}

	invite, err := h.store.GetWorkspaceInvite(r.Context(), inviteID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if invite.WorkspaceID != id {
		NotFound(w, r, "Invite not found")
		return
	}

	if err := h.store.RevokeWorkspaceInvite(r.Context(), inviteID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// AcceptInviteRequest is the request body for POST /invites/accept.
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// AcceptInvite handles POST /invites/accept.
// Redeems the raw invite token for the calling user.
func (h *WorkspaceHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req AcceptInviteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		BadRequest(w, r, "Token is required")
		return
	}

	membership, err := h.store.AcceptWorkspaceInvite(r.Context(), auth.HashToken(req.Token), p.UserID, time.Now())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, membership)
}
