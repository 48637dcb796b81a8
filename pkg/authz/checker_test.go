//go:build integration

package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

func newTestChecker(t *testing.T) (*Checker, *store.GORMStore) {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewChecker(st), st
}

func seedWorkspaceWithProject(t *testing.T, st *store.GORMStore) (ownerID, workspaceID, projectID string) {
	t.Helper()
	ctx := context.Background()

	ownerID, err := st.CreateUser(ctx, &models.User{Subject: "authz-owner"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	workspaceID, err = st.CreateWorkspace(ctx, &models.Workspace{Name: "authz-ws"}, ownerID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	projectID, err = st.CreateProject(ctx, &models.Project{WorkspaceID: workspaceID, Name: "authz-prj"})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return ownerID, workspaceID, projectID
}

func TestCheckWorkspace(t *testing.T) {
	ctx := context.Background()
	checker, st := newTestChecker(t)
	ownerID, workspaceID, _ := seedWorkspaceWithProject(t, st)

	scopes := RequireAny(models.ScopeWorkspacesRead)
	owner := Principal{UserID: ownerID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeWorkspacesRead}}

	if err := checker.CheckWorkspace(ctx, owner, workspaceID, scopes, models.WorkspaceRoleOwner); err != nil {
		t.Errorf("owner check failed: %v", err)
	}

	// Missing scope fails even for the owner.
	noScope := Principal{UserID: ownerID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeFilesRead}}
	if err := checker.CheckWorkspace(ctx, noScope, workspaceID, scopes, models.WorkspaceRoleGuest); !errors.Is(err, ErrInsufficientScope) {
		t.Errorf("missing scope returned %v, want ErrInsufficientScope", err)
	}

	// A member below the required role fails.
	memberID, err := st.CreateUser(ctx, &models.User{Subject: "authz-member"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := st.UpsertWorkspaceMembership(ctx, &models.WorkspaceMembership{
		WorkspaceID: workspaceID, UserID: memberID, Role: models.WorkspaceRoleMember,
	}); err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	member := Principal{UserID: memberID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeWorkspacesRead}}
	if err := checker.CheckWorkspace(ctx, member, workspaceID, scopes, models.WorkspaceRoleAdmin); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("member-as-admin returned %v, want ErrInsufficientRole", err)
	}

	// A non-member fails.
	strangerID, err := st.CreateUser(ctx, &models.User{Subject: "authz-stranger"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	stranger := Principal{UserID: strangerID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeWorkspacesRead}}
	if err := checker.CheckWorkspace(ctx, stranger, workspaceID, scopes, models.WorkspaceRoleGuest); !errors.Is(err, ErrNotMember) {
		t.Errorf("stranger returned %v, want ErrNotMember", err)
	}
}

func TestCheckWorkspace_Isolation(t *testing.T) {
	ctx := context.Background()
	checker, st := newTestChecker(t)
	ownerID, workspaceID, _ := seedWorkspaceWithProject(t, st)

	otherWS, err := st.CreateWorkspace(ctx, &models.Workspace{Name: "other-ws"}, ownerID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	scopes := RequireAny(models.ScopeWorkspacesRead)
	bound := Principal{UserID: ownerID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeWorkspacesRead}}
	if err := checker.CheckWorkspace(ctx, bound, otherWS, scopes, models.WorkspaceRoleGuest); !errors.Is(err, ErrCrossWorkspace) {
		t.Errorf("cross-workspace returned %v, want ErrCrossWorkspace", err)
	}

	// A token without a workspace binding skips isolation.
	unbound := Principal{UserID: ownerID, Scopes: []string{models.ScopeWorkspacesRead}}
	if err := checker.CheckWorkspace(ctx, unbound, otherWS, scopes, models.WorkspaceRoleGuest); err != nil {
		t.Errorf("unbound token failed isolation-free check: %v", err)
	}
}

func TestCheckProject_OwnerImpliesAdmin(t *testing.T) {
	ctx := context.Background()
	checker, st := newTestChecker(t)
	ownerID, workspaceID, projectID := seedWorkspaceWithProject(t, st)

	owner := Principal{UserID: ownerID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeProjectsWrite}}
	project, err := checker.CheckProject(ctx, owner, projectID, RequireAny(models.ScopeProjectsWrite), models.ProjectRoleAdmin)
	if err != nil {
		t.Fatalf("owner project-admin check failed: %v", err)
	}
	if project.ID != projectID {
		t.Errorf("resolved project %s, want %s", project.ID, projectID)
	}
}

func TestCheckProject_RoleOrdering(t *testing.T) {
	ctx := context.Background()
	checker, st := newTestChecker(t)
	_, workspaceID, projectID := seedWorkspaceWithProject(t, st)

	editorID, err := st.CreateUser(ctx, &models.User{Subject: "authz-editor"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := st.UpsertWorkspaceMembership(ctx, &models.WorkspaceMembership{
		WorkspaceID: workspaceID, UserID: editorID, Role: models.WorkspaceRoleMember,
	}); err != nil {
		t.Fatalf("failed to create workspace membership: %v", err)
	}
	if err := st.UpsertProjectMembership(ctx, &models.ProjectMembership{
		ProjectID: projectID, UserID: editorID, Role: models.ProjectRoleEditor,
	}); err != nil {
		t.Fatalf("failed to create project membership: %v", err)
	}

	editor := Principal{UserID: editorID, WorkspaceID: workspaceID, Scopes: []string{models.ScopeFilesWrite}}
	scopes := RequireAny(models.ScopeFilesWrite)

	if _, err := checker.CheckProject(ctx, editor, projectID, scopes, models.ProjectRoleEditor); err != nil {
		t.Errorf("editor-as-editor failed: %v", err)
	}
	if _, err := checker.CheckProject(ctx, editor, projectID, scopes, models.ProjectRoleAdmin); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("editor-as-admin returned %v, want ErrInsufficientRole", err)
	}
}

func TestCheckProject_CrossWorkspace(t *testing.T) {
	ctx := context.Background()
	checker, st := newTestChecker(t)
	ownerID, _, projectID := seedWorkspaceWithProject(t, st)

	foreignWS, err := st.CreateWorkspace(ctx, &models.Workspace{Name: "foreign-ws"}, ownerID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	foreign := Principal{UserID: ownerID, WorkspaceID: foreignWS, Scopes: []string{models.ScopeProjectsRead}}
	if _, err := checker.CheckProject(ctx, foreign, projectID, RequireAny(models.ScopeProjectsRead), models.ProjectRoleViewer); !errors.Is(err, ErrCrossWorkspace) {
		t.Errorf("cross-workspace project access returned %v, want ErrCrossWorkspace", err)
	}
}
