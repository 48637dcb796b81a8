package store

import (
	"context"
	"errors"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// USER OPERATIONS
// ============================================

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

func (s *GORMStore) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "subject", subject, models.ErrUserNotFound)
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](s.db, ctx)
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	user.CreatedAt = time.Now()
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

// EnsureUser upserts a user by identity provider subject. It returns the
// existing user when the subject is already known, updating email and display
// name if they changed upstream.
func (s *GORMStore) EnsureUser(ctx context.Context, subject, email, displayName string) (*models.User, error) {
	existing, err := s.GetUserBySubject(ctx, subject)
	if err == nil {
		if existing.Email != email || existing.DisplayName != displayName {
			existing.Email = email
			existing.DisplayName = displayName
			if err := s.db.WithContext(ctx).
				Model(existing).
				Select("Email", "DisplayName").
				Updates(existing).Error; err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	user := &models.User{
		Subject:     subject,
		Email:       email,
		DisplayName: displayName,
	}
	if _, err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			// Lost a concurrent insert race; the row exists now.
			return s.GetUserBySubject(ctx, subject)
		}
		return nil, err
	}
	return user, nil
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, userID string, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", timestamp)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
