package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// ============================================
// PROJECT OPERATIONS
// ============================================

func (s *GORMStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return getByField[models.Project](s.db, ctx, "id", id, models.ErrProjectNotFound)
}

func (s *GORMStore) ListProjects(ctx context.Context, workspaceID string) ([]*models.Project, error) {
	return listByField[models.Project](s.db, ctx, "workspace_id", workspaceID)
}

// CreateProject creates a project. Project names are unique within a
// workspace, checked inside the transaction.
func (s *GORMStore) CreateProject(ctx context.Context, project *models.Project) (string, error) {
	if err := project.Validate(); err != nil {
		return "", err
	}
	project.CreatedAt = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).
			Where("workspace_id = ? AND name = ?", project.WorkspaceID, project.Name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicateProject
		}
		_, err := createWithID(tx, ctx, project, func(p *models.Project, id string) { p.ID = id }, project.ID, models.ErrDuplicateProject)
		return err
	})
	if err != nil {
		return "", err
	}
	return project.ID, nil
}

func (s *GORMStore) UpdateProject(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Project
		if err := tx.Where("id = ?", project.ID).First(&existing).Error; err != nil {
			return convertNotFoundError(err, models.ErrProjectNotFound)
		}
		if project.Name != existing.Name {
			var count int64
			if err := tx.Model(&models.Project{}).
				Where("workspace_id = ? AND name = ? AND id <> ?", existing.WorkspaceID, project.Name, project.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return models.ErrDuplicateProject
			}
		}
		if err := tx.Model(&existing).Updates(map[string]any{
			"name":        project.Name,
			"description": project.Description,
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}
		project.WorkspaceID = existing.WorkspaceID
		project.UpdatedAt = &now
		return nil
	})
}

// DeleteProject removes the project and everything it exclusively owns.
func (s *GORMStore) DeleteProject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("id = ?", id).First(&project).Error; err != nil {
			return convertNotFoundError(err, models.ErrProjectNotFound)
		}
		if err := deleteProjectTree(tx, id); err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}

// deleteProjectTree removes all rows owned by a project except the project
// row itself. Callers delete the project row after this returns.
func deleteProjectTree(tx *gorm.DB, projectID string) error {
	var modelIDs []string
	if err := tx.Model(&models.Model{}).
		Where("project_id = ?", projectID).
		Pluck("id", &modelIDs).Error; err != nil {
		return err
	}
	if len(modelIDs) > 0 {
		var versionIDs []string
		if err := tx.Model(&models.ModelVersion{}).
			Where("model_id IN ?", modelIDs).
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
			if err := tx.Where("model_id IN ?", modelIDs).
				Delete(&models.ModelVersion{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("project_id = ?", projectID).
			Delete(&models.Model{}).Error; err != nil {
			return err
		}
	}

	var fileIDs []string
	if err := tx.Model(&models.File{}).
		Where("project_id = ?", projectID).
		Pluck("id", &fileIDs).Error; err != nil {
		return err
	}
	if len(fileIDs) > 0 {
		if err := tx.Where("source_file_id IN ? OR target_file_id IN ?", fileIDs, fileIDs).
			Delete(&models.FileLink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).
			Delete(&models.File{}).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("project_id = ?", projectID).
		Delete(&models.UploadSession{}).Error; err != nil {
		return err
	}
	return tx.Where("project_id = ?", projectID).
		Delete(&models.ProjectMembership{}).Error
}

// ============================================
// PROJECT MEMBERSHIPS
// ============================================

func (s *GORMStore) GetProjectMembership(ctx context.Context, projectID, userID string) (*models.ProjectMembership, error) {
	var membership models.ProjectMembership
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&membership).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrMembershipNotFound)
	}
	return &membership, nil
}

func (s *GORMStore) ListProjectMemberships(ctx context.Context, projectID string) ([]*models.ProjectMembership, error) {
	return listByField[models.ProjectMembership](s.db, ctx, "project_id", projectID)
}

func (s *GORMStore) UpsertProjectMembership(ctx context.Context, membership *models.ProjectMembership) error {
	if !membership.Role.IsValid() {
		return models.ErrInvalidRole
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProjectMembership
		err := tx.Where("project_id = ? AND user_id = ?", membership.ProjectID, membership.UserID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(membership).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.ProjectMembership{}).
			Where("project_id = ? AND user_id = ?", membership.ProjectID, membership.UserID).
			Update("role", membership.Role).Error
	})
}

func (s *GORMStore) RemoveProjectMembership(ctx context.Context, projectID, userID string) error {
	result := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMembership{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrMembershipNotFound
	}
	return nil
}
