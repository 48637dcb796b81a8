package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// UPLOAD SESSION OPERATIONS
// ============================================

func (s *GORMStore) GetUploadSession(ctx context.Context, id string) (*models.UploadSession, error) {
	return getByField[models.UploadSession](s.db, ctx, "id", id, models.ErrUploadSessionNotFound)
}

func (s *GORMStore) ListUploadSessions(ctx context.Context, projectID string) ([]*models.UploadSession, error) {
	return listByField[models.UploadSession](s.db, ctx, "project_id", projectID)
}

func (s *GORMStore) CreateUploadSession(ctx context.Context, session *models.UploadSession) (string, error) {
	session.CreatedAt = time.Now()
	session.Status = models.UploadStatusReserved
	return createWithID(s.db, ctx, session, func(u *models.UploadSession, id string) { u.ID = id }, session.ID, models.ErrUploadSessionNotFound)
}

// TransitionUploadSession moves the session from one status to another with
// a guarded update. Returns ErrInvalidSessionState when the session is not
// in the expected status, so concurrent transitions lose cleanly.
func (s *GORMStore) TransitionUploadSession(ctx context.Context, id string, from, to models.UploadStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.UploadSession{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.UploadSession{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrUploadSessionNotFound
		}
		return models.ErrInvalidSessionState
	}
	return nil
}

// SetUploadSessionStorage records the temporary storage key and, for direct
// uploads, the presigned URL on a freshly reserved session.
func (s *GORMStore) SetUploadSessionStorage(ctx context.Context, id, tempKey, directURL string) error {
	result := s.db.WithContext(ctx).
		Model(&models.UploadSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"temp_storage_key":  tempKey,
			"direct_upload_url": directURL,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUploadSessionNotFound
	}
	return nil
}

// CommitUploadSession finalizes an upload: it creates the File record and
// marks the session committed in one transaction. The session must be in
// the expected status or the commit is refused.
func (s *GORMStore) CommitUploadSession(ctx context.Context, id string, expected models.UploadStatus, file *models.File) (*models.File, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.UploadSession
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			return convertNotFoundError(err, models.ErrUploadSessionNotFound)
		}
		if session.Status != expected {
			return models.ErrInvalidSessionState
		}

		file.CreatedAt = time.Now()
		if _, err := createWithID(tx, ctx, file, func(f *models.File, id string) { f.ID = id }, file.ID, models.ErrDuplicateFile); err != nil {
			return err
		}

		result := tx.Model(&models.UploadSession{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(map[string]any{
				"status":            models.UploadStatusCommitted,
				"committed_file_id": file.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrInvalidSessionState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// FailUploadSession moves a non-terminal session to Failed with a reason.
func (s *GORMStore) FailUploadSession(ctx context.Context, id, reason string) error {
	result := s.db.WithContext(ctx).
		Model(&models.UploadSession{}).
		Where("id = ? AND status IN ?", id, []models.UploadStatus{models.UploadStatusReserved, models.UploadStatusUploading}).
		Updates(map[string]any{
			"status":         models.UploadStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.UploadSession{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrUploadSessionNotFound
		}
		return models.ErrInvalidSessionState
	}
	return nil
}

// ExpireStaleUploadSessions marks non-terminal sessions past their deadline
// as Expired and returns them so callers can clean up temporary storage.
func (s *GORMStore) ExpireStaleUploadSessions(ctx context.Context, now time.Time) ([]*models.UploadSession, error) {
	var expired []*models.UploadSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status IN ? AND expires_at < ?",
				[]models.UploadStatus{models.UploadStatusReserved, models.UploadStatusUploading}, now).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, len(expired))
		for i, session := range expired {
			ids[i] = session.ID
			session.Status = models.UploadStatusExpired
		}
		return tx.Model(&models.UploadSession{}).
			Where("id IN ? AND status IN ?", ids,
				[]models.UploadStatus{models.UploadStatusReserved, models.UploadStatusUploading}).
			Update("status", models.UploadStatusExpired).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
