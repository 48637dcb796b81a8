// Package authz enforces the two orthogonal authorization checks: token
// scopes and workspace/project roles, plus workspace isolation for
// tokens bound to a tenant.
package authz

import (
	"context"
	"errors"

	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// Authorization errors.
var (
	// ErrInsufficientScope means the token does not carry a required scope.
	ErrInsufficientScope = errors.New("insufficient scope")

	// ErrInsufficientRole means the user's role is below the required minimum.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrNotMember means the user has no membership in the target
	// workspace or project.
	ErrNotMember = errors.New("not a member")

	// ErrCrossWorkspace means a tenant-bound token touched a resource in
	// another workspace.
	ErrCrossWorkspace = errors.New("resource belongs to a different workspace")
)

// ScopeRequirement declares the scopes an operation needs. Exactly one
// of Any or All is set: Any passes when the token has at least one of
// the listed scopes, All requires every one.
type ScopeRequirement struct {
	Any []string
	All []string
}

// RequireAny builds a requirement satisfied by any listed scope.
func RequireAny(scopes ...string) ScopeRequirement {
	return ScopeRequirement{Any: scopes}
}

// RequireAll builds a requirement needing every listed scope.
func RequireAll(scopes ...string) ScopeRequirement {
	return ScopeRequirement{All: scopes}
}

// Check tests the requirement against the token's scope set.
func (r ScopeRequirement) Check(granted []string) error {
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}

	if len(r.All) > 0 {
		for _, s := range r.All {
			if !have[s] {
				return ErrInsufficientScope
			}
		}
		return nil
	}
	for _, s := range r.Any {
		if have[s] {
			return nil
		}
	}
	if len(r.Any) == 0 {
		return nil
	}
	return ErrInsufficientScope
}

// Principal is the authenticated caller as seen by authorization checks.
// WorkspaceID is empty for dev-mode tokens, which skips isolation.
type Principal struct {
	UserID      string
	WorkspaceID string
	Scopes      []string
}

// TenantBound reports whether the principal's token carries a workspace
// binding.
func (p Principal) TenantBound() bool {
	return p.WorkspaceID != ""
}

// Checker resolves roles and enforces isolation against the entity store.
type Checker struct {
	store store.Store
}

// NewChecker creates a checker backed by the entity store.
func NewChecker(st store.Store) *Checker {
	return &Checker{store: st}
}

// CheckWorkspace verifies isolation, scope, and the minimum workspace
// role for an operation addressing a workspace.
func (c *Checker) CheckWorkspace(ctx context.Context, p Principal, workspaceID string, scopes ScopeRequirement, minRole models.WorkspaceRole) error {
	if p.TenantBound() && p.WorkspaceID != workspaceID {
		return ErrCrossWorkspace
	}
	if err := scopes.Check(p.Scopes); err != nil {
		return err
	}

	membership, err := c.store.GetWorkspaceMembership(ctx, workspaceID, p.UserID)
	if err != nil {
		if errors.Is(err, models.ErrMembershipNotFound) {
			return ErrNotMember
		}
		return err
	}
	if membership.Role < minRole {
		return ErrInsufficientRole
	}
	return nil
}

// CheckProject verifies isolation, scope, and the minimum project role
// for an operation addressing a project. The project's workspace is
// resolved from the store and compared against the token binding; a
// workspace Owner implicitly holds every project role.
func (c *Checker) CheckProject(ctx context.Context, p Principal, projectID string, scopes ScopeRequirement, minRole models.ProjectRole) (*models.Project, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.TenantBound() && p.WorkspaceID != project.WorkspaceID {
		return nil, ErrCrossWorkspace
	}
	if err := scopes.Check(p.Scopes); err != nil {
		return nil, err
	}

	role, err := c.ResolveProjectRole(ctx, p.UserID, project)
	if err != nil {
		return nil, err
	}
	if role < minRole {
		return nil, ErrInsufficientRole
	}
	return project, nil
}

// ResolveProjectRole returns the user's effective role on the project.
// Returns ErrNotMember when the user holds neither a project membership
// nor the workspace Owner role.
func (c *Checker) ResolveProjectRole(ctx context.Context, userID string, project *models.Project) (models.ProjectRole, error) {
	wsMembership, err := c.store.GetWorkspaceMembership(ctx, project.WorkspaceID, userID)
	if err != nil && !errors.Is(err, models.ErrMembershipNotFound) {
		return 0, err
	}
	if wsMembership != nil && wsMembership.Role == models.WorkspaceRoleOwner {
		return models.ProjectRoleAdmin, nil
	}

	membership, err := c.store.GetProjectMembership(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, models.ErrMembershipNotFound) {
			return 0, ErrNotMember
		}
		return 0, err
	}
	return membership.Role, nil
}

// CheckSameWorkspace enforces isolation for a resource already resolved
// to its workspace.
func (c *Checker) CheckSameWorkspace(p Principal, resourceWorkspaceID string) error {
	if p.TenantBound() && p.WorkspaceID != resourceWorkspaceID {
		return ErrCrossWorkspace
	}
	return nil
}
