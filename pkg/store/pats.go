package store

import (
	"context"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// PERSONAL ACCESS TOKEN OPERATIONS
// ============================================

func (s *GORMStore) GetPersonalAccessToken(ctx context.Context, id string) (*models.PersonalAccessToken, error) {
	return getByField[models.PersonalAccessToken](s.db, ctx, "id", id, models.ErrPATNotFound)
}

func (s *GORMStore) GetPersonalAccessTokenByHash(ctx context.Context, tokenHash string) (*models.PersonalAccessToken, error) {
	return getByField[models.PersonalAccessToken](s.db, ctx, "token_hash", tokenHash, models.ErrPATNotFound)
}

// ListPersonalAccessTokens lists tokens in a workspace. Pass a non-empty
// userID to restrict to one user's tokens.
func (s *GORMStore) ListPersonalAccessTokens(ctx context.Context, workspaceID, userID string) ([]*models.PersonalAccessToken, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var results []*models.PersonalAccessToken
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CreatePersonalAccessToken(ctx context.Context, token *models.PersonalAccessToken) (string, error) {
	if err := models.ValidateScopes(token.Scopes); err != nil {
		return "", err
	}
	token.CreatedAt = time.Now()
	return createWithID(s.db, ctx, token, func(t *models.PersonalAccessToken, id string) { t.ID = id }, token.ID, models.ErrPATNotFound)
}

// RevokePersonalAccessToken revokes a token. Revoking twice returns
// ErrPATRevoked.
func (s *GORMStore) RevokePersonalAccessToken(ctx context.Context, id, reason string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.PersonalAccessToken{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Updates(map[string]any{
			"is_revoked":     true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.PersonalAccessToken{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrPATNotFound
		}
		return models.ErrPATRevoked
	}
	return nil
}

// TouchPersonalAccessToken records last-use metadata. Best effort; callers
// ignore the error on the hot path.
func (s *GORMStore) TouchPersonalAccessToken(ctx context.Context, id, ipAddress string, usedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.PersonalAccessToken{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_used_at":         usedAt,
			"last_used_ip_address": ipAddress,
		}).Error
}
