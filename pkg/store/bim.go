package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// MODEL OPERATIONS
// ============================================

func (s *GORMStore) GetModel(ctx context.Context, id string) (*models.Model, error) {
	return getByField[models.Model](s.db, ctx, "id", id, models.ErrModelNotFound)
}

func (s *GORMStore) ListModels(ctx context.Context, projectID string) ([]*models.Model, error) {
	return listByField[models.Model](s.db, ctx, "project_id", projectID)
}

func (s *GORMStore) CreateModel(ctx context.Context, model *models.Model) (string, error) {
	model.CreatedAt = time.Now()
	return createWithID(s.db, ctx, model, func(m *models.Model, id string) { m.ID = id }, model.ID, models.ErrDuplicateModel)
}

func (s *GORMStore) DeleteModel(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.Model
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return convertNotFoundError(err, models.ErrModelNotFound)
		}

		var versionIDs []string
		if err := tx.Model(&models.ModelVersion{}).
			Where("model_id = ?", id).
			Pluck("id", &versionIDs).Error; err != nil {
			return err
		}
		if len(versionIDs) > 0 {
			if err := deleteElementsForVersions(tx, versionIDs); err != nil {
				return err
			}
			if err := tx.Where("model_version_id IN ?", versionIDs).
				Delete(&models.ProcessingJob{}).Error; err != nil {
				return err
			}
			if err := tx.Where("model_id = ?", id).
				Delete(&models.ModelVersion{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&model).Error
	})
}

// ============================================
// MODEL VERSION OPERATIONS
// ============================================

func (s *GORMStore) GetModelVersion(ctx context.Context, id string) (*models.ModelVersion, error) {
	return getByField[models.ModelVersion](s.db, ctx, "id", id, models.ErrModelVersionNotFound)
}

func (s *GORMStore) GetModelVersionByNumber(ctx context.Context, modelID string, versionNumber int) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := s.db.WithContext(ctx).
		Where("model_id = ? AND version_number = ?", modelID, versionNumber).
		First(&version).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrModelVersionNotFound)
	}
	return &version, nil
}

func (s *GORMStore) ListModelVersions(ctx context.Context, modelID string) ([]*models.ModelVersion, error) {
	var results []*models.ModelVersion
	err := s.db.WithContext(ctx).
		Where("model_id = ?", modelID).
		Order("version_number ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreateModelVersion assigns the next dense version number inside a
// transaction. Concurrent creates for the same model race on the unique
// (model_id, version_number) index; losers retry with a fresh number.
func (s *GORMStore) CreateModelVersion(ctx context.Context, version *models.ModelVersion) (string, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Model{}).
				Where("id = ?", version.ModelID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrModelNotFound
			}

			var maxNumber int
			if err := tx.Model(&models.ModelVersion{}).
				Where("model_id = ?", version.ModelID).
				Select("COALESCE(MAX(version_number), 0)").
				Scan(&maxNumber).Error; err != nil {
				return err
			}
			version.VersionNumber = maxNumber + 1
			version.Status = models.VersionStatusPending
			version.CreatedAt = time.Now()

			_, err := createWithID(tx, ctx, version, func(v *models.ModelVersion, id string) { v.ID = id }, version.ID, models.ErrDuplicateVersion)
			return err
		})
		if err == nil {
			return version.ID, nil
		}
		lastErr = err
		if err != models.ErrDuplicateVersion {
			return "", err
		}
		version.ID = ""
	}
	return "", lastErr
}

// TransitionModelVersion moves the version from one status to another with
// a guarded update, so a worker cannot overwrite a terminal state.
func (s *GORMStore) TransitionModelVersion(ctx context.Context, id string, from, to models.VersionStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.ModelVersion{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.ModelVersion{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrModelVersionNotFound
		}
		return models.ErrInvalidVersionState
	}
	return nil
}

// FinalizeModelVersion marks a processing version Ready and records the
// artifact file IDs atomically.
func (s *GORMStore) FinalizeModelVersion(ctx context.Context, id, wexBimFileID, propertiesFileID string, processedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ModelVersion{}).
		Where("id = ? AND status = ?", id, models.VersionStatusProcessing).
		Updates(map[string]any{
			"status":             models.VersionStatusReady,
			"wex_bim_file_id":    wexBimFileID,
			"properties_file_id": propertiesFileID,
			"processed_at":       processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidVersionState
	}
	return nil
}

// FailModelVersion marks a non-terminal version Failed. The error message
// is truncated to the column size.
func (s *GORMStore) FailModelVersion(ctx context.Context, id, errorMessage string, processedAt time.Time) error {
	if len(errorMessage) > 4000 {
		errorMessage = errorMessage[:4000]
	}
	result := s.db.WithContext(ctx).
		Model(&models.ModelVersion{}).
		Where("id = ? AND status IN ?", id,
			[]models.VersionStatus{models.VersionStatusPending, models.VersionStatusProcessing}).
		Updates(map[string]any{
			"status":        models.VersionStatusFailed,
			"error_message": errorMessage,
			"processed_at":  processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidVersionState
	}
	return nil
}

// ============================================
// PROCESSING JOB OPERATIONS
// ============================================

func (s *GORMStore) GetProcessingJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	return getByField[models.ProcessingJob](s.db, ctx, "id", id, models.ErrJobNotFound)
}

func (s *GORMStore) ListProcessingJobs(ctx context.Context, modelVersionID string) ([]*models.ProcessingJob, error) {
	return listByField[models.ProcessingJob](s.db, ctx, "model_version_id", modelVersionID)
}

func (s *GORMStore) CreateProcessingJob(ctx context.Context, job *models.ProcessingJob) (string, error) {
	job.CreatedAt = time.Now()
	job.Status = models.JobStatusQueued
	return createWithID(s.db, ctx, job, func(j *models.ProcessingJob, id string) { j.ID = id }, job.ID, models.ErrJobNotFound)
}

func (s *GORMStore) StartProcessingJob(ctx context.Context, id string, startedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusQueued).
		Updates(map[string]any{
			"status":     models.JobStatusRunning,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

func (s *GORMStore) CompleteProcessingJob(ctx context.Context, id string, completedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

func (s *GORMStore) FailProcessingJob(ctx context.Context, id, errorMessage string, completedAt time.Time) error {
	if len(errorMessage) > 4000 {
		errorMessage = errorMessage[:4000]
	}
	result := s.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ? AND status IN ?", id,
			[]models.JobStatus{models.JobStatusQueued, models.JobStatusRunning}).
		Updates(map[string]any{
			"status":        models.JobStatusFailed,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}
