package store

import (
	"context"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// AUDIT LOG OPERATIONS
// ============================================
//
// Audit tables are append-only. There are no update or delete operations.

func (s *GORMStore) AppendOAuthAppAudit(ctx context.Context, entry *models.OAuthAppAuditLog) (string, error) {
	entry.Timestamp = time.Now()
	return createWithID(s.db, ctx, entry, func(e *models.OAuthAppAuditLog, id string) { e.ID = id }, entry.ID, models.ErrOAuthAppNotFound)
}

func (s *GORMStore) ListOAuthAppAudit(ctx context.Context, subjectID string) ([]*models.OAuthAppAuditLog, error) {
	var results []*models.OAuthAppAuditLog
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) AppendPersonalAccessTokenAudit(ctx context.Context, entry *models.PersonalAccessTokenAuditLog) (string, error) {
	entry.Timestamp = time.Now()
	return createWithID(s.db, ctx, entry, func(e *models.PersonalAccessTokenAuditLog, id string) { e.ID = id }, entry.ID, models.ErrPATNotFound)
}

func (s *GORMStore) ListPersonalAccessTokenAudit(ctx context.Context, subjectID string) ([]*models.PersonalAccessTokenAuditLog, error) {
	var results []*models.PersonalAccessTokenAuditLog
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
