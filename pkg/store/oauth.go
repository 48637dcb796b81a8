package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// OAUTH APP OPERATIONS
// ============================================

func (s *GORMStore) GetOAuthApp(ctx context.Context, id string) (*models.OAuthApp, error) {
	return getByField[models.OAuthApp](s.db, ctx, "id", id, models.ErrOAuthAppNotFound)
}

func (s *GORMStore) GetOAuthAppByClientID(ctx context.Context, clientID string) (*models.OAuthApp, error) {
	return getByField[models.OAuthApp](s.db, ctx, "client_id", clientID, models.ErrOAuthAppNotFound)
}

func (s *GORMStore) ListOAuthApps(ctx context.Context, workspaceID string) ([]*models.OAuthApp, error) {
	return listByField[models.OAuthApp](s.db, ctx, "workspace_id", workspaceID)
}

func (s *GORMStore) CreateOAuthApp(ctx context.Context, app *models.OAuthApp) (string, error) {
	if err := app.Validate(); err != nil {
		return "", err
	}
	app.CreatedAt = time.Now()
	return createWithID(s.db, ctx, app, func(a *models.OAuthApp, id string) { a.ID = id }, app.ID, models.ErrDuplicateOAuthApp)
}

func (s *GORMStore) UpdateOAuthApp(ctx context.Context, app *models.OAuthApp) error {
	if err := app.Validate(); err != nil {
		return err
	}
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.OAuthApp{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"name":           app.Name,
			"description":    app.Description,
			"redirect_uris":  app.RedirectURIs,
			"allowed_scopes": app.AllowedScopes,
			"is_enabled":     app.IsEnabled,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrOAuthAppNotFound
	}
	app.UpdatedAt = &now
	return nil
}

// UpdateOAuthAppSecret replaces the confidential client secret hash.
func (s *GORMStore) UpdateOAuthAppSecret(ctx context.Context, id, secretHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.OAuthApp{}).
		Where("id = ?", id).
		Update("client_secret_hash", secretHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrOAuthAppNotFound
	}
	return nil
}

// DeleteOAuthApp removes the app and revokes everything issued through it.
func (s *GORMStore) DeleteOAuthApp(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.OAuthApp
		if err := tx.Where("id = ?", id).First(&app).Error; err != nil {
			return convertNotFoundError(err, models.ErrOAuthAppNotFound)
		}
		if err := tx.Where("oauth_app_id = ?", id).
			Delete(&models.AuthorizationCode{}).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.RefreshToken{}).
			Where("oauth_app_id = ? AND is_revoked = ?", id, false).
			Updates(map[string]any{
				"is_revoked":     true,
				"revoked_at":     now,
				"revoked_reason": models.RevokedReasonUserRequest,
			}).Error; err != nil {
			return err
		}
		return tx.Delete(&app).Error
	})
}

// ============================================
// AUTHORIZATION CODES
// ============================================

func (s *GORMStore) CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (string, error) {
	code.CreatedAt = time.Now()
	return createWithID(s.db, ctx, code, func(c *models.AuthorizationCode, id string) { c.ID = id }, code.ID, models.ErrAuthCodeNotFound)
}

// ConsumeAuthorizationCode atomically redeems a code by hash. A guarded
// update marks it used; losing a concurrent redemption, an expired code,
// or an unknown hash all return ErrAuthCodeNotFound so callers cannot
// distinguish them.
func (s *GORMStore) ConsumeAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (*models.AuthorizationCode, error) {
	var code *models.AuthorizationCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found models.AuthorizationCode
		if err := tx.Where("code_hash = ?", codeHash).First(&found).Error; err != nil {
			return convertNotFoundError(err, models.ErrAuthCodeNotFound)
		}
		if found.IsUsed || now.After(found.ExpiresAt) {
			return models.ErrAuthCodeNotFound
		}

		result := tx.Model(&models.AuthorizationCode{}).
			Where("id = ? AND is_used = ?", found.ID, false).
			Updates(map[string]any{
				"is_used": true,
				"used_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrAuthCodeNotFound
		}

		found.IsUsed = true
		found.UsedAt = &now
		code = &found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// PurgeExpiredAuthorizationCodes removes codes past their expiry. Used
// codes are kept until expiry for audit trails.
func (s *GORMStore) PurgeExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.AuthorizationCode{})
	return result.RowsAffected, result.Error
}

// ============================================
// REFRESH TOKENS
// ============================================

func (s *GORMStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) (string, error) {
	token.CreatedAt = time.Now()
	return createWithID(s.db, ctx, token, func(t *models.RefreshToken, id string) { t.ID = id }, token.ID, models.ErrRefreshNotFound)
}

func (s *GORMStore) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return getByField[models.RefreshToken](s.db, ctx, "token_hash", tokenHash, models.ErrRefreshNotFound)
}

// RotateRefreshToken redeems the presented token and issues its successor
// in one transaction. Presenting a token that was already rotated or
// revoked is treated as theft: the entire token family is revoked and
// ErrTokenReuseDetected is returned.
func (s *GORMStore) RotateRefreshToken(ctx context.Context, tokenHash string, successor *models.RefreshToken, now time.Time) (*models.RefreshToken, error) {
	var rotated *models.RefreshToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.RefreshToken
		if err := tx.Where("token_hash = ?", tokenHash).First(&current).Error; err != nil {
			return convertNotFoundError(err, models.ErrRefreshNotFound)
		}

		if current.IsRevoked {
			if err := revokeTokenFamily(tx, current.TokenFamilyID, models.RevokedReasonReuseDetected, now); err != nil {
				return err
			}
			return models.ErrTokenReuseDetected
		}
		if now.After(current.ExpiresAt) {
			return models.ErrRefreshNotFound
		}

		successor.UserID = current.UserID
		successor.WorkspaceID = current.WorkspaceID
		successor.OAuthAppID = current.OAuthAppID
		successor.Scopes = current.Scopes
		successor.TokenFamilyID = current.TokenFamilyID
		successor.ParentTokenID = &current.ID
		successor.CreatedAt = now
		if _, err := createWithID(tx, ctx, successor, func(t *models.RefreshToken, id string) { t.ID = id }, successor.ID, models.ErrRefreshNotFound); err != nil {
			return err
		}

		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND is_revoked = ?", current.ID, false).
			Updates(map[string]any{
				"is_revoked":           true,
				"revoked_at":           now,
				"revoked_reason":       models.RevokedReasonRotation,
				"replaced_by_token_id": successor.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// A concurrent rotation won; treat it as reuse.
			if err := revokeTokenFamily(tx, current.TokenFamilyID, models.RevokedReasonReuseDetected, now); err != nil {
				return err
			}
			return models.ErrTokenReuseDetected
		}

		rotated = successor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

// RevokeRefreshToken revokes a single token at the user's request.
func (s *GORMStore) RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token_hash = ? AND is_revoked = ?", tokenHash, false).
		Updates(map[string]any{
			"is_revoked":     true,
			"revoked_at":     now,
			"revoked_reason": models.RevokedReasonUserRequest,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrRefreshNotFound
	}
	return nil
}

// RevokeTokenFamily revokes every live token descending from one grant.
func (s *GORMStore) RevokeTokenFamily(ctx context.Context, familyID, reason string, now time.Time) error {
	return revokeTokenFamily(s.db.WithContext(ctx), familyID, reason, now)
}

func revokeTokenFamily(tx *gorm.DB, familyID, reason string, now time.Time) error {
	return tx.Model(&models.RefreshToken{}).
		Where("token_family_id = ? AND is_revoked = ?", familyID, false).
		Updates(map[string]any{
			"is_revoked":     true,
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}
