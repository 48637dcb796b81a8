// Package upload coordinates the upload session state machine between
// the entity store and the content store: reservation, byte transfer
// (server proxy or direct-to-blob), commit, and expiry sweeping.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/content/keys"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/store"
)

// Coordinator errors.
var (
	// ErrNotSupported means the content backend cannot mint presigned
	// URLs, so direct-to-blob reservations are refused.
	ErrNotSupported = errors.New("direct uploads are not supported by the content backend")

	// ErrWrongMode means uploadContent was called on a direct-to-blob
	// session.
	ErrWrongMode = errors.New("session does not accept proxied uploads")

	// ErrContentMissing means commit found no bytes under the session key.
	ErrContentMissing = errors.New("no content was uploaded for the session")
)

// DefaultSessionTTL is how long a reservation stays open.
const DefaultSessionTTL = 30 * time.Minute

// Config contains coordinator configuration.
type Config struct {
	// Store is the entity store.
	Store store.Store

	// Content is the content store uploads flow into.
	Content content.Store

	// Provider names the content backend on created File records
	// (e.g. "fs", "s3").
	Provider string

	// SessionTTL overrides the 30-minute reservation window.
	SessionTTL time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Coordinator drives upload sessions through their state machine.
type Coordinator struct {
	store    store.Store
	content  content.Store
	provider string
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates an upload coordinator.
func New(cfg Config) *Coordinator {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		store:    cfg.Store,
		content:  cfg.Content,
		provider: cfg.Provider,
		ttl:      cfg.SessionTTL,
		logger:   cfg.Logger,
	}
}

// ReserveRequest describes a new upload reservation.
type ReserveRequest struct {
	WorkspaceID       string
	ProjectID         string
	FileName          string
	ContentType       string
	ExpectedSizeBytes *int64
	Mode              models.UploadMode
}

// Reserve creates an upload session in state Reserved and allocates its
// temporary storage key. For direct-to-blob sessions a presigned URL is
// minted; backends that cannot mint one fail with ErrNotSupported.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (*models.UploadSession, error) {
	session := &models.UploadSession{
		ProjectID:         req.ProjectID,
		FileName:          req.FileName,
		ContentType:       req.ContentType,
		ExpectedSizeBytes: req.ExpectedSizeBytes,
		UploadMode:        req.Mode,
		ExpiresAt:         time.Now().Add(c.ttl),
	}
	if _, err := c.store.CreateUploadSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create upload session: %w", err)
	}

	tempKey := keys.ForUpload(req.WorkspaceID, req.ProjectID, session.ID, filepath.Ext(req.FileName))

	var directURL string
	if req.Mode == models.UploadModeDirectToBlob {
		url, err := c.content.GenerateUploadURL(ctx, tempKey, req.ContentType, session.ExpiresAt)
		if err != nil {
			_ = c.store.FailUploadSession(ctx, session.ID, "failed to generate upload URL")
			return nil, fmt.Errorf("failed to generate upload URL: %w", err)
		}
		if url == "" {
			_ = c.store.FailUploadSession(ctx, session.ID, "backend does not support direct uploads")
			return nil, ErrNotSupported
		}
		directURL = url
	}

	if err := c.store.SetUploadSessionStorage(ctx, session.ID, tempKey, directURL); err != nil {
		return nil, err
	}
	session.TempStorageKey = tempKey
	session.DirectUploadURL = directURL
	return session, nil
}

// Get returns the session, scoped to the project.
func (c *Coordinator) Get(ctx context.Context, projectID, sessionID string) (*models.UploadSession, error) {
	session, err := c.store.GetUploadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ProjectID != projectID {
		return nil, models.ErrUploadSessionNotFound
	}
	return session, nil
}

// UploadContent streams bytes through the server into the session's
// temporary key. Permitted only for server-proxy sessions in state
// Reserved or Uploading; re-uploading an already transferred session
// retries once under a fresh key.
func (c *Coordinator) UploadContent(ctx context.Context, projectID, sessionID string, r io.Reader) (*models.UploadSession, error) {
	session, err := c.Get(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UploadMode != models.UploadModeServerProxy {
		return nil, ErrWrongMode
	}
	if session.Status != models.UploadStatusReserved && session.Status != models.UploadStatusUploading {
		return nil, models.ErrInvalidSessionState
	}

	key := session.TempStorageKey
	err = c.content.Put(ctx, key, r, session.ContentType)
	if errors.Is(err, content.ErrAlreadyExists) {
		key = freshUploadKey(session.TempStorageKey)
		if err = c.content.Put(ctx, key, r, session.ContentType); err == nil {
			if err := c.store.SetUploadSessionStorage(ctx, session.ID, key, session.DirectUploadURL); err != nil {
				return nil, err
			}
			session.TempStorageKey = key
		}
	}
	if err != nil {
		reason := fmt.Sprintf("content store write failed: %v", err)
		if failErr := c.store.FailUploadSession(ctx, session.ID, reason); failErr != nil {
			c.logger.Warn("failed to mark upload session failed",
				"session_id", session.ID, "error", failErr)
		}
		session.Status = models.UploadStatusFailed
		session.FailureReason = reason
		return session, err
	}

	if err := c.store.TransitionUploadSession(ctx, session.ID, models.UploadStatusReserved, models.UploadStatusUploading); err != nil {
		// Idempotent when a previous call already moved the session.
		if !errors.Is(err, models.ErrInvalidSessionState) {
			return nil, err
		}
		current, getErr := c.store.GetUploadSession(ctx, session.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status != models.UploadStatusUploading {
			return nil, models.ErrInvalidSessionState
		}
	}
	session.Status = models.UploadStatusUploading
	return session, nil
}

// CommitOptions tunes the File record produced by a commit.
type CommitOptions struct {
	// Category classifies the file; defaults to FileCategoryOther.
	Category models.FileCategory

	// Checksum is the client-supplied content digest, if any.
	Checksum string
}

// Commit finalizes the session: verifies the bytes are present, records
// the observed size, creates the File record, and moves the session to
// Committed. Server-proxy sessions commit from Uploading; direct-to-blob
// sessions commit straight from Reserved once the client has uploaded.
// A missing key fails the session.
func (c *Coordinator) Commit(ctx context.Context, projectID, sessionID string, opts CommitOptions) (*models.File, error) {
	session, err := c.Get(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.UploadStatusCommitted && session.CommittedFileID != nil {
		// Commit is idempotent: a repeated call returns the same File.
		return c.store.GetFile(ctx, *session.CommittedFileID)
	}
	if session.Status.IsTerminal() {
		return nil, models.ErrInvalidSessionState
	}

	size, err := c.content.Size(ctx, session.TempStorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to probe uploaded content: %w", err)
	}
	if size < 0 {
		reason := "commit found no content under the session key"
		if failErr := c.store.FailUploadSession(ctx, session.ID, reason); failErr != nil {
			c.logger.Warn("failed to mark upload session failed",
				"session_id", session.ID, "error", failErr)
		}
		return nil, ErrContentMissing
	}

	category := opts.Category
	if category == "" {
		category = models.FileCategoryOther
	}
	file := &models.File{
		ProjectID:       session.ProjectID,
		Name:            session.FileName,
		ContentType:     session.ContentType,
		SizeBytes:       size,
		Checksum:        opts.Checksum,
		Category:        category,
		StorageProvider: c.provider,
		StorageKey:      session.TempStorageKey,
	}
	return c.store.CommitUploadSession(ctx, session.ID, session.Status, file)
}

// Sweep expires sessions past their deadline and deletes their
// temporary keys. Idempotent; returns the number of sessions expired.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	expired, err := c.store.ExpireStaleUploadSessions(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		if session.TempStorageKey == "" {
			continue
		}
		// Every temporary key of the session lives under one prefix.
		prefix := path.Dir(session.TempStorageKey) + "/"
		if err := c.content.DeletePrefix(ctx, prefix); err != nil {
			c.logger.Warn("failed to delete expired upload content",
				"session_id", session.ID, "prefix", prefix, "error", err)
		}
	}
	return len(expired), nil
}

// freshUploadKey derives a collision-free sibling of an occupied key
// inside the same session directory.
func freshUploadKey(occupied string) string {
	ext := filepath.Ext(occupied)
	return path.Dir(occupied) + "/" + uuid.New().String()[:8] + ext
}
