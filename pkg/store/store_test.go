//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *GORMStore, subject string) *models.User {
	t.Helper()
	user, err := store.EnsureUser(context.Background(), subject, subject+"@example.com", subject)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestWorkspace(t *testing.T, store *GORMStore, name, ownerID string) *models.Workspace {
	t.Helper()
	workspace := &models.Workspace{Name: name}
	if _, err := store.CreateWorkspace(context.Background(), workspace, ownerID); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return workspace
}

func createTestProject(t *testing.T, store *GORMStore, workspaceID, name string) *models.Project {
	t.Helper()
	project := &models.Project{WorkspaceID: workspaceID, Name: name}
	if _, err := store.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return project
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		config := &Config{
			Type: "invalid",
		}
		_, err := New(config)
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		if err := store.Healthcheck(context.Background()); err != nil {
			t.Errorf("healthcheck failed: %v", err)
		}
	})
}

func TestWorkspaceOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")

	t.Run("create workspace grants owner membership", func(t *testing.T) {
		workspace := createTestWorkspace(t, store, "acme", owner.ID)

		membership, err := store.GetWorkspaceMembership(ctx, workspace.ID, owner.ID)
		if err != nil {
			t.Fatalf("failed to get membership: %v", err)
		}
		if membership.Role != models.WorkspaceRoleOwner {
			t.Errorf("expected owner role, got %s", membership.Role)
		}
	})

	t.Run("last owner cannot be demoted", func(t *testing.T) {
		workspace := createTestWorkspace(t, store, "solo", owner.ID)

		err := store.UpsertWorkspaceMembership(ctx, &models.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      owner.ID,
			Role:        models.WorkspaceRoleMember,
		})
		if !errors.Is(err, models.ErrLastOwner) {
			t.Errorf("expected ErrLastOwner, got %v", err)
		}
	})

	t.Run("last owner cannot leave", func(t *testing.T) {
		workspace := createTestWorkspace(t, store, "solo2", owner.ID)

		err := store.RemoveWorkspaceMembership(ctx, workspace.ID, owner.ID)
		if !errors.Is(err, models.ErrLastOwner) {
			t.Errorf("expected ErrLastOwner, got %v", err)
		}
	})

	t.Run("second owner allows demotion", func(t *testing.T) {
		workspace := createTestWorkspace(t, store, "duo", owner.ID)
		second := createTestUser(t, store, "second-owner")

		err := store.UpsertWorkspaceMembership(ctx, &models.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      second.ID,
			Role:        models.WorkspaceRoleOwner,
		})
		if err != nil {
			t.Fatalf("failed to add second owner: %v", err)
		}

		err = store.UpsertWorkspaceMembership(ctx, &models.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      owner.ID,
			Role:        models.WorkspaceRoleAdmin,
		})
		if err != nil {
			t.Errorf("expected demotion to succeed, got %v", err)
		}
	})

	t.Run("delete workspace removes owned rows", func(t *testing.T) {
		workspace := createTestWorkspace(t, store, "doomed", owner.ID)
		project := createTestProject(t, store, workspace.ID, "p1")

		if err := store.DeleteWorkspace(ctx, workspace.ID); err != nil {
			t.Fatalf("failed to delete workspace: %v", err)
		}

		if _, err := store.GetProject(ctx, project.ID); !errors.Is(err, models.ErrProjectNotFound) {
			t.Errorf("expected ErrProjectNotFound, got %v", err)
		}
		if _, err := store.GetWorkspaceMembership(ctx, workspace.ID, owner.ID); !errors.Is(err, models.ErrMembershipNotFound) {
			t.Errorf("expected ErrMembershipNotFound, got %v", err)
		}
	})
}

func TestWorkspaceInvites(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "inviter")
	invitee := createTestUser(t, store, "invitee")
	workspace := createTestWorkspace(t, store, "invite-ws", owner.ID)

	t.Run("accept pending invite creates membership", func(t *testing.T) {
		invite := &models.WorkspaceInvite{
			WorkspaceID: workspace.ID,
			Email:       "invitee@example.com",
			Role:        models.WorkspaceRoleMember,
			TokenHash:   "hash-1",
			ExpiresAt:   time.Now().Add(time.Hour),
		}
		if _, err := store.CreateWorkspaceInvite(ctx, invite); err != nil {
			t.Fatalf("failed to create invite: %v", err)
		}

		membership, err := store.AcceptWorkspaceInvite(ctx, "hash-1", invitee.ID, time.Now())
		if err != nil {
			t.Fatalf("failed to accept invite: %v", err)
		}
		if membership.Role != models.WorkspaceRoleMember {
			t.Errorf("expected member role, got %s", membership.Role)
		}
	})

	t.Run("accepting twice fails", func(t *testing.T) {
		_, err := store.AcceptWorkspaceInvite(ctx, "hash-1", invitee.ID, time.Now())
		if !errors.Is(err, models.ErrInviteNotFound) {
			t.Errorf("expected ErrInviteNotFound, got %v", err)
		}
	})

	t.Run("expired invite is refused and marked", func(t *testing.T) {
		invite := &models.WorkspaceInvite{
			WorkspaceID: workspace.ID,
			Email:       "late@example.com",
			Role:        models.WorkspaceRoleMember,
			TokenHash:   "hash-2",
			ExpiresAt:   time.Now().Add(-time.Hour),
		}
		if _, err := store.CreateWorkspaceInvite(ctx, invite); err != nil {
			t.Fatalf("failed to create invite: %v", err)
		}

		_, err := store.AcceptWorkspaceInvite(ctx, "hash-2", invitee.ID, time.Now())
		if !errors.Is(err, models.ErrInviteExpired) {
			t.Errorf("expected ErrInviteExpired, got %v", err)
		}

		stored, _ := store.GetWorkspaceInvite(ctx, invite.ID)
		if stored.Status != models.InviteStatusExpired {
			t.Errorf("expected expired status, got %d", stored.Status)
		}
	})
}

func TestProjectOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "project-owner")
	workspace := createTestWorkspace(t, store, "project-ws", owner.ID)

	t.Run("duplicate project name in workspace fails", func(t *testing.T) {
		createTestProject(t, store, workspace.ID, "design")

		_, err := store.CreateProject(ctx, &models.Project{
			WorkspaceID: workspace.ID,
			Name:        "design",
		})
		if !errors.Is(err, models.ErrDuplicateProject) {
			t.Errorf("expected ErrDuplicateProject, got %v", err)
		}
	})

	t.Run("same name in another workspace is fine", func(t *testing.T) {
		other := createTestWorkspace(t, store, "other-ws", owner.ID)

		_, err := store.CreateProject(ctx, &models.Project{
			WorkspaceID: other.ID,
			Name:        "design",
		})
		if err != nil {
			t.Errorf("expected success, got %v", err)
		}
	})
}

func TestFileOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "file-owner")
	workspace := createTestWorkspace(t, store, "file-ws", owner.ID)
	project := createTestProject(t, store, workspace.ID, "files")

	file := &models.File{
		ProjectID:       project.ID,
		Name:            "tower.ifc",
		SizeBytes:       1024,
		Category:        models.FileCategoryIfc,
		StorageProvider: "fs",
		StorageKey:      "ws/pr/raw/tower.ifc",
	}
	if _, err := store.CreateFile(ctx, file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	t.Run("soft delete hides file from listing", func(t *testing.T) {
		if err := store.SoftDeleteFile(ctx, file.ID); err != nil {
			t.Fatalf("failed to soft delete: %v", err)
		}

		files, total, err := store.ListFiles(ctx, project.ID, "", 0, 10)
		if err != nil {
			t.Fatalf("failed to list files: %v", err)
		}
		if total != 0 || len(files) != 0 {
			t.Errorf("expected no files, got %d", total)
		}

		// The record stays readable by ID with its storage key intact.
		stored, err := store.GetFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("failed to get file: %v", err)
		}
		if !stored.IsDeleted || stored.StorageKey == "" {
			t.Error("expected deleted record with storage key retained")
		}
	})

	t.Run("soft delete twice fails", func(t *testing.T) {
		if err := store.SoftDeleteFile(ctx, file.ID); !errors.Is(err, models.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})
}

func TestUploadSessionStateMachine(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "upload-owner")
	workspace := createTestWorkspace(t, store, "upload-ws", owner.ID)
	project := createTestProject(t, store, workspace.ID, "uploads")

	newSession := func(t *testing.T) *models.UploadSession {
		t.Helper()
		session := &models.UploadSession{
			ProjectID: project.ID,
			FileName:  "tower.ifc",
			ExpiresAt: time.Now().Add(30 * time.Minute),
		}
		if _, err := store.CreateUploadSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		return session
	}

	t.Run("reserved to uploading to committed", func(t *testing.T) {
		session := newSession(t)

		if err := store.TransitionUploadSession(ctx, session.ID, models.UploadStatusReserved, models.UploadStatusUploading); err != nil {
			t.Fatalf("failed to start upload: %v", err)
		}

		file, err := store.CommitUploadSession(ctx, session.ID, models.UploadStatusUploading, &models.File{
			ProjectID:       project.ID,
			Name:            session.FileName,
			SizeBytes:       2048,
			Category:        models.FileCategoryIfc,
			StorageProvider: "fs",
			StorageKey:      "ws/pr/raw/tower.ifc",
		})
		if err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		stored, _ := store.GetUploadSession(ctx, session.ID)
		if stored.Status != models.UploadStatusCommitted {
			t.Errorf("expected committed, got %s", stored.Status)
		}
		if stored.CommittedFileID == nil || *stored.CommittedFileID != file.ID {
			t.Error("expected committed file id to be recorded")
		}
	})

	t.Run("commit from reserved is refused in proxy mode", func(t *testing.T) {
		session := newSession(t)

		_, err := store.CommitUploadSession(ctx, session.ID, models.UploadStatusUploading, &models.File{
			ProjectID:       project.ID,
			Name:            session.FileName,
			StorageProvider: "fs",
			StorageKey:      "ws/pr/raw/x.ifc",
		})
		if !errors.Is(err, models.ErrInvalidSessionState) {
			t.Errorf("expected ErrInvalidSessionState, got %v", err)
		}
	})

	t.Run("terminal states reject transitions", func(t *testing.T) {
		session := newSession(t)

		if err := store.FailUploadSession(ctx, session.ID, "client gave up"); err != nil {
			t.Fatalf("failed to fail session: %v", err)
		}
		err := store.TransitionUploadSession(ctx, session.ID, models.UploadStatusFailed, models.UploadStatusUploading)
		if err == nil {
			t.Error("expected transition out of failed to be refused")
		}
		if err := store.FailUploadSession(ctx, session.ID, "again"); !errors.Is(err, models.ErrInvalidSessionState) {
			t.Errorf("expected ErrInvalidSessionState, got %v", err)
		}
	})

	t.Run("stale sessions expire", func(t *testing.T) {
		session := &models.UploadSession{
			ProjectID: project.ID,
			FileName:  "stale.ifc",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		if _, err := store.CreateUploadSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		expired, err := store.ExpireStaleUploadSessions(ctx, time.Now())
		if err != nil {
			t.Fatalf("failed to expire sessions: %v", err)
		}

		var found bool
		for _, s := range expired {
			if s.ID == session.ID {
				found = true
			}
		}
		if !found {
			t.Error("expected stale session in expired set")
		}

		stored, _ := store.GetUploadSession(ctx, session.ID)
		if stored.Status != models.UploadStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
	})
}

func TestModelVersionNumbering(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "version-owner")
	workspace := createTestWorkspace(t, store, "version-ws", owner.ID)
	project := createTestProject(t, store, workspace.ID, "versions")

	model := &models.Model{ProjectID: project.ID, Name: "tower"}
	if _, err := store.CreateModel(ctx, model); err != nil {
		t.Fatalf("failed to create model: %v", err)
	}

	t.Run("version numbers are dense from one", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			version := &models.ModelVersion{ModelID: model.ID, IfcFileID: "f1"}
			if _, err := store.CreateModelVersion(ctx, version); err != nil {
				t.Fatalf("failed to create version: %v", err)
			}
			if version.VersionNumber != want {
				t.Errorf("expected version %d, got %d", want, version.VersionNumber)
			}
		}
	})

	t.Run("finalize requires processing status", func(t *testing.T) {
		version := &models.ModelVersion{ModelID: model.ID, IfcFileID: "f1"}
		if _, err := store.CreateModelVersion(ctx, version); err != nil {
			t.Fatalf("failed to create version: %v", err)
		}

		err := store.FinalizeModelVersion(ctx, version.ID, "wex", "props", time.Now())
		if !errors.Is(err, models.ErrInvalidVersionState) {
			t.Errorf("expected ErrInvalidVersionState, got %v", err)
		}

		if err := store.TransitionModelVersion(ctx, version.ID, models.VersionStatusPending, models.VersionStatusProcessing); err != nil {
			t.Fatalf("failed to start processing: %v", err)
		}
		if err := store.FinalizeModelVersion(ctx, version.ID, "wex", "props", time.Now()); err != nil {
			t.Fatalf("failed to finalize: %v", err)
		}

		stored, _ := store.GetModelVersion(ctx, version.ID)
		if stored.Status != models.VersionStatusReady {
			t.Errorf("expected ready, got %s", stored.Status)
		}
		if stored.WexBimFileID == nil || stored.PropertiesFileID == nil {
			t.Error("expected artifact file ids on ready version")
		}
	})

	t.Run("failed version keeps truncated message", func(t *testing.T) {
		version := &models.ModelVersion{ModelID: model.ID, IfcFileID: "f1"}
		if _, err := store.CreateModelVersion(ctx, version); err != nil {
			t.Fatalf("failed to create version: %v", err)
		}

		long := make([]byte, 5000)
		for i := range long {
			long[i] = 'x'
		}
		if err := store.FailModelVersion(ctx, version.ID, string(long), time.Now()); err != nil {
			t.Fatalf("failed to fail version: %v", err)
		}

		stored, _ := store.GetModelVersion(ctx, version.ID)
		if len(stored.ErrorMessage) != 4000 {
			t.Errorf("expected 4000-char message, got %d", len(stored.ErrorMessage))
		}
	})
}

func TestIfcElementOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	owner := createTestUser(t, store, "ifc-owner")
	workspace := createTestWorkspace(t, store, "ifc-ws", owner.ID)
	project := createTestProject(t, store, workspace.ID, "ifc")
	model := &models.Model{ProjectID: project.ID, Name: "tower"}
	if _, err := store.CreateModel(ctx, model); err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	version := &models.ModelVersion{ModelID: model.ID, IfcFileID: "f1"}
	if _, err := store.CreateModelVersion(ctx, version); err != nil {
		t.Fatalf("failed to create version: %v", err)
	}

	t.Run("duplicate labels keep last occurrence", func(t *testing.T) {
		elements := []*models.IfcElement{
			{EntityLabel: 100, Name: "first"},
			{EntityLabel: 200, Name: "wall"},
			{EntityLabel: 100, Name: "last"},
		}
		if err := store.ReplaceIfcElements(ctx, version.ID, elements); err != nil {
			t.Fatalf("failed to replace elements: %v", err)
		}

		count, _ := store.CountIfcElements(ctx, version.ID)
		if count != 2 {
			t.Errorf("expected 2 elements, got %d", count)
		}

		element, err := store.GetIfcElementByLabel(ctx, version.ID, 100)
		if err != nil {
			t.Fatalf("failed to get element: %v", err)
		}
		if element.Name != "last" {
			t.Errorf("expected last occurrence, got %q", element.Name)
		}
	})

	t.Run("property graph roundtrip", func(t *testing.T) {
		elements := []*models.IfcElement{
			{
				EntityLabel: 300,
				GlobalID:    "2O2Fr$t4X7Zf8NOew3FLOH",
				Name:        "door",
				TypeName:    "IfcDoor",
				PropertySets: []models.IfcPropertySet{
					{
						Name: "Pset_DoorCommon",
						Properties: []models.IfcProperty{
							{Name: "FireRating", Value: "EI30", ValueType: "IfcLabel"},
						},
					},
				},
				QuantitySets: []models.IfcQuantitySet{
					{
						Name: "Qto_DoorBaseQuantities",
						Quantities: []models.IfcQuantity{
							{Name: "Height", Value: 2.1, Unit: "m"},
						},
					},
				},
			},
		}
		if err := store.ReplaceIfcElements(ctx, version.ID, elements); err != nil {
			t.Fatalf("failed to replace elements: %v", err)
		}

		element, err := store.GetIfcElementByGlobalID(ctx, version.ID, "2O2Fr$t4X7Zf8NOew3FLOH")
		if err != nil {
			t.Fatalf("failed to get element by global id: %v", err)
		}
		if len(element.PropertySets) != 1 || len(element.PropertySets[0].Properties) != 1 {
			t.Fatal("expected one property set with one property")
		}
		if element.PropertySets[0].Properties[0].Value != "EI30" {
			t.Errorf("unexpected property value %q", element.PropertySets[0].Properties[0].Value)
		}
		if len(element.QuantitySets) != 1 || len(element.QuantitySets[0].Quantities) != 1 {
			t.Fatal("expected one quantity set with one quantity")
		}
	})

	t.Run("replace removes previous elements", func(t *testing.T) {
		count, _ := store.CountIfcElements(ctx, version.ID)
		if count != 1 {
			t.Errorf("expected 1 element after replace, got %d", count)
		}
	})

	t.Run("paged listing filters by type", func(t *testing.T) {
		elements, total, err := store.ListIfcElements(ctx, version.ID, "IfcDoor", 0, 10)
		if err != nil {
			t.Fatalf("failed to list elements: %v", err)
		}
		if total != 1 || len(elements) != 1 {
			t.Errorf("expected one door, got %d", total)
		}

		_, total, err = store.ListIfcElements(ctx, version.ID, "IfcWall", 0, 10)
		if err != nil {
			t.Fatalf("failed to list elements: %v", err)
		}
		if total != 0 {
			t.Errorf("expected no walls, got %d", total)
		}
	})
}

func TestAuthorizationCodes(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	code := &models.AuthorizationCode{
		CodeHash:    "code-hash",
		OAuthAppID:  "app-1",
		UserID:      "user-1",
		WorkspaceID: "ws-1",
		RedirectURI: "https://client.example/cb",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	if _, err := store.CreateAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("failed to create code: %v", err)
	}

	t.Run("code is single use", func(t *testing.T) {
		consumed, err := store.ConsumeAuthorizationCode(ctx, "code-hash", time.Now())
		if err != nil {
			t.Fatalf("failed to consume code: %v", err)
		}
		if !consumed.IsUsed {
			t.Error("expected consumed code to be marked used")
		}

		_, err = store.ConsumeAuthorizationCode(ctx, "code-hash", time.Now())
		if !errors.Is(err, models.ErrAuthCodeNotFound) {
			t.Errorf("expected ErrAuthCodeNotFound on reuse, got %v", err)
		}
	})

	t.Run("expired code is refused", func(t *testing.T) {
		expired := &models.AuthorizationCode{
			CodeHash:    "expired-hash",
			OAuthAppID:  "app-1",
			UserID:      "user-1",
			WorkspaceID: "ws-1",
			RedirectURI: "https://client.example/cb",
			ExpiresAt:   time.Now().Add(-time.Minute),
		}
		if _, err := store.CreateAuthorizationCode(ctx, expired); err != nil {
			t.Fatalf("failed to create code: %v", err)
		}

		_, err := store.ConsumeAuthorizationCode(ctx, "expired-hash", time.Now())
		if !errors.Is(err, models.ErrAuthCodeNotFound) {
			t.Errorf("expected ErrAuthCodeNotFound, got %v", err)
		}
	})
}

func TestRefreshTokenRotation(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	seed := func(t *testing.T, hash, family string) *models.RefreshToken {
		t.Helper()
		token := &models.RefreshToken{
			TokenHash:     hash,
			UserID:        "user-1",
			WorkspaceID:   "ws-1",
			Scopes:        models.StringSlice{"files:read"},
			ExpiresAt:     time.Now().Add(24 * time.Hour),
			TokenFamilyID: family,
		}
		if _, err := store.CreateRefreshToken(ctx, token); err != nil {
			t.Fatalf("failed to create refresh token: %v", err)
		}
		return token
	}

	t.Run("rotation revokes predecessor and links successor", func(t *testing.T) {
		seed(t, "rt-1", "family-1")

		successor := &models.RefreshToken{
			TokenHash: "rt-2",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		rotated, err := store.RotateRefreshToken(ctx, "rt-1", successor, time.Now())
		if err != nil {
			t.Fatalf("failed to rotate: %v", err)
		}
		if rotated.TokenFamilyID != "family-1" {
			t.Errorf("expected family to carry over, got %q", rotated.TokenFamilyID)
		}

		old, _ := store.GetRefreshTokenByHash(ctx, "rt-1")
		if !old.IsRevoked || old.RevokedReason != models.RevokedReasonRotation {
			t.Error("expected predecessor revoked for rotation")
		}
		if old.ReplacedByTokenID == nil || *old.ReplacedByTokenID != rotated.ID {
			t.Error("expected predecessor to link successor")
		}
	})

	t.Run("reuse revokes the whole family", func(t *testing.T) {
		_, err := store.RotateRefreshToken(ctx, "rt-1", &models.RefreshToken{
			TokenHash: "rt-3",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}, time.Now())
		if !errors.Is(err, models.ErrTokenReuseDetected) {
			t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
		}

		// The live successor from the first rotation must now be dead.
		live, _ := store.GetRefreshTokenByHash(ctx, "rt-2")
		if !live.IsRevoked || live.RevokedReason != models.RevokedReasonReuseDetected {
			t.Error("expected successor revoked for reuse detection")
		}
	})

	t.Run("expired token cannot rotate", func(t *testing.T) {
		token := &models.RefreshToken{
			TokenHash:     "rt-old",
			UserID:        "user-1",
			WorkspaceID:   "ws-1",
			ExpiresAt:     time.Now().Add(-time.Hour),
			TokenFamilyID: "family-2",
		}
		if _, err := store.CreateRefreshToken(ctx, token); err != nil {
			t.Fatalf("failed to create refresh token: %v", err)
		}

		_, err := store.RotateRefreshToken(ctx, "rt-old", &models.RefreshToken{
			TokenHash: "rt-new",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}, time.Now())
		if !errors.Is(err, models.ErrRefreshNotFound) {
			t.Errorf("expected ErrRefreshNotFound, got %v", err)
		}
	})
}

func TestPersonalAccessTokens(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("unknown scope is rejected", func(t *testing.T) {
		_, err := store.CreatePersonalAccessToken(ctx, &models.PersonalAccessToken{
			TokenHash:   "pat-hash-bad",
			TokenPrefix: "pat_abcd",
			UserID:      "user-1",
			WorkspaceID: "ws-1",
			Name:        "ci",
			Scopes:      models.StringSlice{"files:read", "nonsense:write"},
			ExpiresAt:   time.Now().Add(90 * 24 * time.Hour),
		})
		if !errors.Is(err, models.ErrUnknownScope) {
			t.Errorf("expected ErrUnknownScope, got %v", err)
		}
	})

	t.Run("revoke twice returns ErrPATRevoked", func(t *testing.T) {
		token := &models.PersonalAccessToken{
			TokenHash:   "pat-hash-1",
			TokenPrefix: "pat_abcd",
			UserID:      "user-1",
			WorkspaceID: "ws-1",
			Name:        "ci",
			Scopes:      models.StringSlice{models.ScopeFilesRead},
			ExpiresAt:   time.Now().Add(90 * 24 * time.Hour),
		}
		if _, err := store.CreatePersonalAccessToken(ctx, token); err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		if err := store.RevokePersonalAccessToken(ctx, token.ID, models.RevokedReasonUserRequest, time.Now()); err != nil {
			t.Fatalf("failed to revoke: %v", err)
		}
		if err := store.RevokePersonalAccessToken(ctx, token.ID, models.RevokedReasonUserRequest, time.Now()); !errors.Is(err, models.ErrPATRevoked) {
			t.Errorf("expected ErrPATRevoked, got %v", err)
		}
	})
}

func TestAuditLogs(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, event := range []string{models.AuditEventCreated, models.AuditEventRevoked} {
		if _, err := store.AppendPersonalAccessTokenAudit(ctx, &models.PersonalAccessTokenAuditLog{
			SubjectID:   "pat-1",
			EventType:   event,
			ActorUserID: "user-1",
		}); err != nil {
			t.Fatalf("failed to append audit entry: %v", err)
		}
	}

	entries, err := store.ListPersonalAccessTokenAudit(ctx, "pat-1")
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != models.AuditEventCreated {
		t.Errorf("expected oldest first, got %q", entries[0].EventType)
	}
}
