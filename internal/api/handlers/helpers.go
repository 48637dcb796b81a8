package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bimhub/bimhub/internal/api/middleware"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/models"
)

// Paging bounds for list endpoints.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PagedList is the envelope for list endpoints. Page numbers are
// 1-based.
type PagedList struct {
	Items    any   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, r, "Invalid request body")
		return false
	}
	return true
}

// pageParams parses the page and pageSize query parameters, clamping
// both to sane bounds.
func pageParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// pageOf slices an already loaded list into the requested page.
func pageOf[T any](items []T, page, pageSize int) ([]T, int64) {
	total := int64(len(items))
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}, total
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// requestMeta collects client metadata recorded against issued
// credentials.
func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// parseWorkspaceRole parses the wire form of a workspace role.
func parseWorkspaceRole(s string) (models.WorkspaceRole, error) {
	switch s {
	case "guest":
		return models.WorkspaceRoleGuest, nil
	case "member":
		return models.WorkspaceRoleMember, nil
	case "admin":
		return models.WorkspaceRoleAdmin, nil
	case "owner":
		return models.WorkspaceRoleOwner, nil
	}
	return 0, models.ErrInvalidRole
}

// parseProjectRole parses the wire form of a project role.
func parseProjectRole(s string) (models.ProjectRole, error) {
	switch s {
	case "viewer":
		return models.ProjectRoleViewer, nil
	case "editor":
		return models.ProjectRoleEditor, nil
	case "admin", "project-admin":
		return models.ProjectRoleAdmin, nil
	}
	return 0, models.ErrInvalidRole
}
