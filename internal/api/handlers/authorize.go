package handlers

import (
	"errors"
	"net/http"

	"github.com/bimhub/bimhub/internal/api/middleware"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/models"
)

// principal resolves the authenticated caller. Writes a 401 and returns
// false when the route was reached without authentication.
func principal(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		Unauthorized(w, r, "Authentication required")
		return authz.Principal{}, false
	}
	return p, true
}

// isNotFoundErr reports whether err is any entity not-found sentinel.
func isNotFoundErr(err error) bool {
	for _, sentinel := range []error{
		models.ErrWorkspaceNotFound,
		models.ErrProjectNotFound,
		models.ErrFileNotFound,
		models.ErrUploadSessionNotFound,
		models.ErrModelNotFound,
		models.ErrModelVersionNotFound,
		models.ErrOAuthAppNotFound,
		models.ErrPATNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// maskExistence converts not-found errors into cross-workspace
// rejections for tenant-bound tokens. A tenant-bound token gets the
// same answer for an id it cannot reach and an id that does not exist,
// so responses never reveal whether a foreign resource is real.
func maskExistence(p authz.Principal, err error) error {
	if p.TenantBound() && isNotFoundErr(err) {
		return authz.ErrCrossWorkspace
	}
	return err
}

// checkWorkspace runs the workspace authorization check and writes the
// error response on failure.
func checkWorkspace(w http.ResponseWriter, r *http.Request, checker *authz.Checker,
	p authz.Principal, workspaceID string, scopes authz.ScopeRequirement, minRole models.WorkspaceRole) bool {

	if err := checker.CheckWorkspace(r.Context(), p, workspaceID, scopes, minRole); err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return false
	}
	return true
}

// checkProject runs the project authorization check and writes the
// error response on failure. Returns the resolved project on success.
func checkProject(w http.ResponseWriter, r *http.Request, checker *authz.Checker,
	p authz.Principal, projectID string, scopes authz.ScopeRequirement, minRole models.ProjectRole) (*models.Project, bool) {

	project, err := checker.CheckProject(r.Context(), p, projectID, scopes, minRole)
	if err != nil {
		WriteDomainError(w, r, maskExistence(p, err))
		return nil, false
	}
	return project, true
}

// requireScopes checks a bare scope requirement for operations that are
// not addressed to a workspace or project.
func requireScopes(w http.ResponseWriter, r *http.Request, p authz.Principal, scopes authz.ScopeRequirement) bool {
	if err := scopes.Check(p.Scopes); err != nil {
		WriteDomainError(w, r, err)
		return false
	}
	return true
}
