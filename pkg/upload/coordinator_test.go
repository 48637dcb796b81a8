//go:build integration

package upload

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bimhub/bimhub/pkg/content/memory"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

func newTestCoordinator(t *testing.T, ttl time.Duration) (*Coordinator, *store.GORMStore, *memory.Store, string, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	userID, err := st.CreateUser(ctx, &models.User{Subject: "upload-test-user"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	workspaceID, err := st.CreateWorkspace(ctx, &models.Workspace{Name: "upload-ws"}, userID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	projectID, err := st.CreateProject(ctx, &models.Project{WorkspaceID: workspaceID, Name: "upload-prj"})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	blobs := memory.New()
	coordinator := New(Config{
		Store:      st,
		Content:    blobs,
		Provider:   "memory",
		SessionTTL: ttl,
	})
	return coordinator, st, blobs, workspaceID, projectID
}

func TestCoordinator_ProxyUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	coordinator, st, blobs, workspaceID, projectID := newTestCoordinator(t, 0)

	session, err := coordinator.Reserve(ctx, ReserveRequest{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		FileName:    "tower.ifc",
		ContentType: "application/x-step",
		Mode:        models.UploadModeServerProxy,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if session.Status != models.UploadStatusReserved {
		t.Errorf("status = %v, want Reserved", session.Status)
	}
	if !strings.Contains(session.TempStorageKey, "/uploads/") {
		t.Errorf("temp key %q is not an uploads key", session.TempStorageKey)
	}
	if session.DirectUploadURL != "" {
		t.Error("proxy session carries a direct URL")
	}

	data := []byte("ISO-10303-21; upload bytes")
	session, err = coordinator.UploadContent(ctx, projectID, session.ID, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("UploadContent failed: %v", err)
	}
	if session.Status != models.UploadStatusUploading {
		t.Errorf("status = %v, want Uploading", session.Status)
	}

	file, err := coordinator.Commit(ctx, projectID, session.ID, CommitOptions{Category: models.FileCategoryIfc})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if file.SizeBytes != int64(len(data)) {
		t.Errorf("file size = %d, want %d", file.SizeBytes, len(data))
	}
	if file.Category != models.FileCategoryIfc {
		t.Errorf("file category = %v, want ifc", file.Category)
	}
	if file.StorageProvider != "memory" {
		t.Errorf("storage provider = %q", file.StorageProvider)
	}

	committed, err := st.GetUploadSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetUploadSession failed: %v", err)
	}
	if committed.Status != models.UploadStatusCommitted {
		t.Errorf("session status = %v, want Committed", committed.Status)
	}
	if committed.CommittedFileID == nil || *committed.CommittedFileID != file.ID {
		t.Error("session does not reference the committed file")
	}

	// Commit is idempotent: the second call returns the same File.
	again, err := coordinator.Commit(ctx, projectID, session.ID, CommitOptions{})
	if err != nil {
		t.Fatalf("repeated Commit failed: %v", err)
	}
	if again.ID != file.ID {
		t.Errorf("repeated commit returned file %s, want %s", again.ID, file.ID)
	}
	files, total, err := st.ListFiles(ctx, projectID, "", 0, 10)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if total != 1 || len(files) != 1 {
		t.Errorf("expected exactly one file record, got %d", total)
	}
	if blobs.Len() != 1 {
		t.Errorf("content store holds %d objects, want 1", blobs.Len())
	}
}

func TestCoordinator_CommitWithoutBytesFailsSession(t *testing.T) {
	ctx := context.Background()
	coordinator, st, _, workspaceID, projectID := newTestCoordinator(t, 0)

	session, err := coordinator.Reserve(ctx, ReserveRequest{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		FileName:    "empty.ifc",
		Mode:        models.UploadModeServerProxy,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if _, err := coordinator.Commit(ctx, projectID, session.ID, CommitOptions{}); !errors.Is(err, ErrContentMissing) {
		t.Fatalf("Commit returned %v, want ErrContentMissing", err)
	}

	failed, err := st.GetUploadSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetUploadSession failed: %v", err)
	}
	if failed.Status != models.UploadStatusFailed {
		t.Errorf("session status = %v, want Failed", failed.Status)
	}
	if failed.FailureReason == "" {
		t.Error("failed session carries no reason")
	}
}

func TestCoordinator_DirectModeUnsupportedBackend(t *testing.T) {
	ctx := context.Background()
	coordinator, st, _, workspaceID, projectID := newTestCoordinator(t, 0)

	_, err := coordinator.Reserve(ctx, ReserveRequest{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		FileName:    "direct.ifc",
		Mode:        models.UploadModeDirectToBlob,
	})
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Reserve returned %v, want ErrNotSupported", err)
	}

	// The reservation is failed, not leaked.
	sessions, err := st.ListUploadSessions(ctx, projectID)
	if err != nil {
		t.Fatalf("ListUploadSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != models.UploadStatusFailed {
		t.Errorf("expected one failed session, got %+v", sessions)
	}
}

func TestCoordinator_UploadWrongMode(t *testing.T) {
	ctx := context.Background()
	coordinator, st, _, _, projectID := newTestCoordinator(t, 0)

	// Seed a direct session by hand since the memory backend refuses them.
	session := &models.UploadSession{
		ProjectID:  projectID,
		FileName:   "direct.ifc",
		UploadMode: models.UploadModeDirectToBlob,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if _, err := st.CreateUploadSession(ctx, session); err != nil {
		t.Fatalf("CreateUploadSession failed: %v", err)
	}

	if _, err := coordinator.UploadContent(ctx, projectID, session.ID, bytes.NewReader([]byte("x"))); !errors.Is(err, ErrWrongMode) {
		t.Errorf("UploadContent returned %v, want ErrWrongMode", err)
	}
}

func TestCoordinator_Sweep(t *testing.T) {
	ctx := context.Background()
	coordinator, st, blobs, workspaceID, projectID := newTestCoordinator(t, -time.Minute)

	session, err := coordinator.Reserve(ctx, ReserveRequest{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		FileName:    "stale.ifc",
		Mode:        models.UploadModeServerProxy,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := blobs.Put(ctx, session.TempStorageKey, bytes.NewReader([]byte("partial")), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	expired, err := coordinator.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if expired != 1 {
		t.Errorf("Sweep expired %d sessions, want 1", expired)
	}

	swept, err := st.GetUploadSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetUploadSession failed: %v", err)
	}
	if swept.Status != models.UploadStatusExpired {
		t.Errorf("session status = %v, want Expired", swept.Status)
	}
	if blobs.Len() != 0 {
		t.Error("temporary content survived the sweep")
	}

	// Sweep is idempotent.
	expired, err = coordinator.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if expired != 0 {
		t.Errorf("second Sweep expired %d sessions, want 0", expired)
	}
}

func TestCoordinator_GetScopedToProject(t *testing.T) {
	ctx := context.Background()
	coordinator, _, _, workspaceID, projectID := newTestCoordinator(t, 0)

	session, err := coordinator.Reserve(ctx, ReserveRequest{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		FileName:    "scoped.ifc",
		Mode:        models.UploadModeServerProxy,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if _, err := coordinator.Get(ctx, "other-project", session.ID); !errors.Is(err, models.ErrUploadSessionNotFound) {
		t.Errorf("cross-project Get returned %v, want ErrUploadSessionNotFound", err)
	}
}
