package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// WORKSPACE OPERATIONS
// ============================================

func (s *GORMStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	return getByField[models.Workspace](s.db, ctx, "id", id, models.ErrWorkspaceNotFound)
}

// ListWorkspacesForUser returns all workspaces the user is a member of.
func (s *GORMStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]*models.Workspace, error) {
	var results []*models.Workspace
	err := s.db.WithContext(ctx).
		Joins("JOIN workspace_memberships ON workspace_memberships.workspace_id = workspaces.id").
		Where("workspace_memberships.user_id = ?", userID).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreateWorkspace creates the workspace and an Owner membership for the
// creator in one transaction. A workspace always has at least one owner.
func (s *GORMStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace, creatorUserID string) (string, error) {
	if err := workspace.Validate(); err != nil {
		return "", err
	}
	workspace.CreatedAt = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := createWithID(tx, ctx, workspace, func(w *models.Workspace, id string) { w.ID = id }, workspace.ID, models.ErrDuplicateWorkspace); err != nil {
			return err
		}
		membership := &models.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      creatorUserID,
			Role:        models.WorkspaceRoleOwner,
		}
		return tx.Create(membership).Error
	})
	if err != nil {
		return "", err
	}
	return workspace.ID, nil
}

func (s *GORMStore) UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	if err := workspace.Validate(); err != nil {
		return err
	}
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Workspace{}).
		Where("id = ?", workspace.ID).
		Updates(map[string]any{
			"name":        workspace.Name,
			"description": workspace.Description,
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrWorkspaceNotFound
	}
	workspace.UpdatedAt = &now
	return nil
}

// DeleteWorkspace removes the workspace and everything it exclusively
// owns: memberships, invites, projects (with their files, uploads, models,
// versions, elements and jobs), OAuth apps, and PATs.
func (s *GORMStore) DeleteWorkspace(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var workspace models.Workspace
		if err := tx.Where("id = ?", id).First(&workspace).Error; err != nil {
			return convertNotFoundError(err, models.ErrWorkspaceNotFound)
		}

		var projectIDs []string
		if err := tx.Model(&models.Project{}).
			Where("workspace_id = ?", id).
			Pluck("id", &projectIDs).Error; err != nil {
			return err
		}
		for _, projectID := range projectIDs {
			if err := deleteProjectTree(tx, projectID); err != nil {
				return err
			}
		}

		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceInvite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.OAuthApp{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.PersonalAccessToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.AuthorizationCode{}).Error; err != nil {
			return err
		}

		return tx.Delete(&workspace).Error
	})
}

// ============================================
// WORKSPACE MEMBERSHIPS
// ============================================

func (s *GORMStore) GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMembership, error) {
	var membership models.WorkspaceMembership
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&membership).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrMembershipNotFound)
	}
	return &membership, nil
}

func (s *GORMStore) ListWorkspaceMemberships(ctx context.Context, workspaceID string) ([]*models.WorkspaceMembership, error) {
	return listByField[models.WorkspaceMembership](s.db, ctx, "workspace_id", workspaceID)
}

// UpsertWorkspaceMembership creates or updates the member's role.
// Demoting the last owner is refused so the workspace stays administrable.
func (s *GORMStore) UpsertWorkspaceMembership(ctx context.Context, membership *models.WorkspaceMembership) error {
	if !membership.Role.IsValid() {
		return models.ErrInvalidRole
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WorkspaceMembership
		err := tx.Where("workspace_id = ? AND user_id = ?", membership.WorkspaceID, membership.UserID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(membership).Error
		}
		if err != nil {
			return err
		}

		if existing.Role == models.WorkspaceRoleOwner && membership.Role != models.WorkspaceRoleOwner {
			owners, err := countOwners(tx, membership.WorkspaceID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return models.ErrLastOwner
			}
		}

		return tx.Model(&models.WorkspaceMembership{}).
			Where("workspace_id = ? AND user_id = ?", membership.WorkspaceID, membership.UserID).
			Update("role", membership.Role).Error
	})
}

// RemoveWorkspaceMembership removes a member. The last owner cannot leave.
func (s *GORMStore) RemoveWorkspaceMembership(ctx context.Context, workspaceID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WorkspaceMembership
		if err := tx.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			First(&existing).Error; err != nil {
			return convertNotFoundError(err, models.ErrMembershipNotFound)
		}

		if existing.Role == models.WorkspaceRoleOwner {
			owners, err := countOwners(tx, workspaceID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return models.ErrLastOwner
			}
		}

		// Project memberships in this workspace go with the workspace
		// membership.
		if err := tx.Where(
			"user_id = ? AND project_id IN (?)",
			userID,
			tx.Model(&models.Project{}).Select("id").Where("workspace_id = ?", workspaceID),
		).Delete(&models.ProjectMembership{}).Error; err != nil {
			return err
		}

		return tx.Delete(&existing).Error
	})
}

func countOwners(tx *gorm.DB, workspaceID string) (int64, error) {
	var count int64
	err := tx.Model(&models.WorkspaceMembership{}).
		Where("workspace_id = ? AND role = ?", workspaceID, models.WorkspaceRoleOwner).
		Count(&count).Error
	return count, err
}

// ============================================
// WORKSPACE INVITES
// ============================================

func (s *GORMStore) CreateWorkspaceInvite(ctx context.Context, invite *models.WorkspaceInvite) (string, error) {
	invite.CreatedAt = time.Now()
	invite.Status = models.InviteStatusPending
	return createWithID(s.db, ctx, invite, func(i *models.WorkspaceInvite, id string) { i.ID = id }, invite.ID, models.ErrInviteNotFound)
}

func (s *GORMStore) GetWorkspaceInvite(ctx context.Context, id string) (*models.WorkspaceInvite, error) {
	return getByField[models.WorkspaceInvite](s.db, ctx, "id", id, models.ErrInviteNotFound)
}

func (s *GORMStore) ListWorkspaceInvites(ctx context.Context, workspaceID string) ([]*models.WorkspaceInvite, error) {
	return listByField[models.WorkspaceInvite](s.db, ctx, "workspace_id", workspaceID)
}

// AcceptWorkspaceInvite redeems a pending invite by token hash and creates
// the membership atomically. Expired invites are marked as such.
func (s *GORMStore) AcceptWorkspaceInvite(ctx context.Context, tokenHash, userID string, now time.Time) (*models.WorkspaceMembership, error) {
	var membership *models.WorkspaceMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.WorkspaceInvite
		if err := tx.Where("token_hash = ?", tokenHash).First(&invite).Error; err != nil {
			return convertNotFoundError(err, models.ErrInviteNotFound)
		}
		if invite.Status != models.InviteStatusPending {
			return models.ErrInviteNotFound
		}
		if now.After(invite.ExpiresAt) {
			if err := tx.Model(&invite).Update("status", models.InviteStatusExpired).Error; err != nil {
				return err
			}
			return models.ErrInviteExpired
		}

		// Accepting an invite to a workspace you already belong to keeps
		// the higher of the two roles.
		var existing models.WorkspaceMembership
		err := tx.Where("workspace_id = ? AND user_id = ?", invite.WorkspaceID, userID).
			First(&existing).Error
		switch {
		case err == nil:
			if invite.Role > existing.Role {
				if err := tx.Model(&existing).Update("role", invite.Role).Error; err != nil {
					return err
				}
				existing.Role = invite.Role
			}
			membership = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			membership = &models.WorkspaceMembership{
				WorkspaceID: invite.WorkspaceID,
				UserID:      userID,
				Role:        invite.Role,
			}
			if err := tx.Create(membership).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&invite).Update("status", models.InviteStatusAccepted).Error
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *GORMStore) RevokeWorkspaceInvite(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvite{}).
		Where("id = ? AND status = ?", id, models.InviteStatusPending).
		Update("status", models.InviteStatusRevoked)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInviteNotFound
	}
	return nil
}
