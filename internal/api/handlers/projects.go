package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// ProjectHandler handles project and project membership endpoints.
type ProjectHandler struct {
	store   store.Store
	checker *authz.Checker
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(st store.Store, checker *authz.Checker) *ProjectHandler {
	return &ProjectHandler{store: st, checker: checker}
}

// CreateProjectRequest is the request body for POST /workspaces/{id}/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest is the request body for PATCH /projects/{id}.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Create handles POST /workspaces/{id}/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopeProjectsWrite), models.WorkspaceRoleMember) {
		return
	}

	var req CreateProjectRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, r, "Name is required")
		return
	}

	project := &models.Project{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
	}
	if _, err := h.store.CreateProject(r.Context(), project); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONCreated(w, project)
}

// Get handles GET /projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	project, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsRead), models.ProjectRoleViewer)
	if !ok {
		return
	}
	WriteJSONOK(w, project)
}

// List handles GET /workspaces/{id}/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	workspaceID := chi.URLParam(r, "id")
	if !checkWorkspace(w, r, h.checker, p, workspaceID, authz.RequireAny(models.ScopeProjectsRead), models.WorkspaceRoleGuest) {
		return
	}

	projects, err := h.store.ListProjects(r.Context(), workspaceID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	// Guests and members without the workspace Owner role only see
	// projects they hold a membership on.
	visible := projects[:0]
	for _, project := range projects {
		if _, err := h.checker.ResolveProjectRole(r.Context(), p.UserID, project); err != nil {
			if errors.Is(err, authz.ErrNotMember) {
				continue
			}
			WriteDomainError(w, r, err)
			return
		}
		visible = append(visible, project)
	}

	page, pageSize := pageParams(r)
	items, total := pageOf(visible, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// Update handles PATCH /projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	project, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsWrite), models.ProjectRoleEditor)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, r, "Name must not be empty")
			return
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, project)
}

// Delete handles DELETE /projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsWrite), models.ProjectRoleAdmin); !ok {
		return
	}

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// UpsertProjectMemberRequest is the request body for POST /projects/{id}/members.
type UpsertProjectMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// ListMembers handles GET /projects/{id}/members.
func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsRead), models.ProjectRoleViewer); !ok {
		return
	}

	memberships, err := h.store.ListProjectMemberships(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	items, total := pageOf(memberships, page, pageSize)
	WriteJSONOK(w, PagedList{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// UpsertMember handles POST /projects/{id}/members.
// The target user must already be a member of the project's workspace.
func (h *ProjectHandler) UpsertMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	project, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsWrite), models.ProjectRoleAdmin)
	if !ok {
		return
	}

	var req UpsertProjectMemberRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		BadRequest(w, r, "user_id is required")
		return
	}
	role, err := parseProjectRole(req.Role)
	if err != nil {
		BadRequest(w, r, "Role must be 'viewer', 'editor', or 'admin'")
		return
	}

	if _, err := h.store.GetWorkspaceMembership(r.Context(), project.WorkspaceID, req.UserID); err != nil {
		if errors.Is(err, models.ErrMembershipNotFound) {
			BadRequest(w, r, "User is not a member of the workspace")
			return
		}
		WriteDomainError(w, r, err)
		return
	}

	membership := &models.ProjectMembership{
		ProjectID: id,
		UserID:    req.UserID,
		Role:      role,
	}
	if err := h.store.UpsertProjectMembership(r.Context(), membership); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSONOK(w, membership)
}

// RemoveMember handles DELETE /projects/{id}/members/{userId}.
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")
	if _, ok := checkProject(w, r, h.checker, p, id, authz.RequireAny(models.ScopeProjectsWrite), models.ProjectRoleAdmin); !ok {
		return
	}

	if err := h.store.RemoveProjectMembership(r.Context(), id, userID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteNoContent(w)
}
