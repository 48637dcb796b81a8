package models

import (
	"fmt"
	"time"
)

// ProjectRole is the role of a user within a project, ordered by value.
type ProjectRole int

const (
	ProjectRoleViewer ProjectRole = 0
	ProjectRoleEditor ProjectRole = 1
	ProjectRoleAdmin  ProjectRole = 2
)

// IsValid checks if the role is a valid ProjectRole.
func (r ProjectRole) IsValid() bool {
	return r >= ProjectRoleViewer && r <= ProjectRoleAdmin
}

func (r ProjectRole) String() string {
	switch r {
	case ProjectRoleViewer:
		return "viewer"
	case ProjectRoleEditor:
		return "editor"
	case ProjectRoleAdmin:
		return "project-admin"
	default:
		return fmt.Sprintf("project-role(%d)", int(r))
	}
}

// Project is a folder-like grouping inside a workspace. It exclusively
// owns its files, upload sessions, and models. Deleting a workspace
// cascades to its projects.
type Project struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string     `gorm:"index;not null;size:36" json:"workspace_id"`
	Name        string     `gorm:"not null;size:255" json:"name"`
	Description string     `gorm:"size:1024" json:"description,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for Project.
func (Project) TableName() string {
	return "projects"
}

// Validate checks if the project has valid configuration.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.WorkspaceID == "" {
		return fmt.Errorf("workspace id is required")
	}
	return nil
}

// ProjectMembership binds a user to a project with a role.
// One membership per (project, user).
type ProjectMembership struct {
	ProjectID string      `gorm:"primaryKey;size:36" json:"project_id"`
	UserID    string      `gorm:"primaryKey;size:36" json:"user_id"`
	Role      ProjectRole `gorm:"not null" json:"role"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ProjectMembership.
func (ProjectMembership) TableName() string {
	return "project_memberships"
}
