package store

import (
	"context"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// FILE OPERATIONS
// ============================================

func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	return getByField[models.File](s.db, ctx, "id", id, models.ErrFileNotFound)
}

// ListFiles returns non-deleted files in a project, newest first, with the
// total count for paging. Pass an empty category to list all categories.
func (s *GORMStore) ListFiles(ctx context.Context, projectID string, category models.FileCategory, offset, limit int) ([]*models.File, int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("project_id = ? AND is_deleted = ?", projectID, false)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*models.File
	if err := q.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (s *GORMStore) CreateFile(ctx context.Context, file *models.File) (string, error) {
	file.CreatedAt = time.Now()
	return createWithID(s.db, ctx, file, func(f *models.File, id string) { f.ID = id }, file.ID, models.ErrDuplicateFile)
}

// SoftDeleteFile marks the file deleted. The stored bytes stay in the
// content store until garbage collection. Deleting twice is a no-op error.
func (s *GORMStore) SoftDeleteFile(ctx context.Context, id string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

// ============================================
// FILE LINKS
// ============================================

func (s *GORMStore) CreateFileLink(ctx context.Context, link *models.FileLink) (string, error) {
	link.CreatedAt = time.Now()
	return createWithID(s.db, ctx, link, func(l *models.FileLink, id string) { l.ID = id }, link.ID, models.ErrDuplicateFile)
}

// ListFileLinks returns all links where the file is source or target.
func (s *GORMStore) ListFileLinks(ctx context.Context, fileID string) ([]*models.FileLink, error) {
	var results []*models.FileLink
	err := s.db.WithContext(ctx).
		Where("source_file_id = ? OR target_file_id = ?", fileID, fileID).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
