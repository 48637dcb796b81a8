package models

import (
	"fmt"
	"time"
)

// WorkspaceRole is the role of a user within a workspace. Roles are
// totally ordered by numeric value; "at least role R" means role >= R.
type WorkspaceRole int

const (
	WorkspaceRoleGuest  WorkspaceRole = 0
	WorkspaceRoleMember WorkspaceRole = 1
	WorkspaceRoleAdmin  WorkspaceRole = 2
	WorkspaceRoleOwner  WorkspaceRole = 3
)

// IsValid checks if the role is a valid WorkspaceRole.
func (r WorkspaceRole) IsValid() bool {
	return r >= WorkspaceRoleGuest && r <= WorkspaceRoleOwner
}

func (r WorkspaceRole) String() string {
	switch r {
	case WorkspaceRoleGuest:
		return "guest"
	case WorkspaceRoleMember:
		return "member"
	case WorkspaceRoleAdmin:
		return "admin"
	case WorkspaceRoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("workspace-role(%d)", int(r))
	}
}

// Workspace is the top-level tenant boundary. It exclusively owns its
// projects, memberships, invites, OAuth apps, and PATs.
type Workspace struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"not null;size:255" json:"name"`
	Description string     `gorm:"size:1024" json:"description,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	Projects []Project `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"projects,omitempty"`
}

// TableName returns the table name for Workspace.
func (Workspace) TableName() string {
	return "workspaces"
}

// Validate checks if the workspace has valid configuration.
func (w *Workspace) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workspace name is required")
	}
	return nil
}

// WorkspaceMembership binds a user to a workspace with a role.
// One membership per (workspace, user).
type WorkspaceMembership struct {
	WorkspaceID string        `gorm:"primaryKey;size:36" json:"workspace_id"`
	UserID      string        `gorm:"primaryKey;size:36" json:"user_id"`
	Role        WorkspaceRole `gorm:"not null" json:"role"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for WorkspaceMembership.
func (WorkspaceMembership) TableName() string {
	return "workspace_memberships"
}

// InviteStatus is the lifecycle state of a workspace invite.
type InviteStatus int

const (
	InviteStatusPending  InviteStatus = 0
	InviteStatusAccepted InviteStatus = 1
	InviteStatusRevoked  InviteStatus = 2
	InviteStatusExpired  InviteStatus = 3
)

// WorkspaceInvite invites an email address into a workspace with a role.
// The invite token is stored hashed; the raw token is shown once.
type WorkspaceInvite struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string        `gorm:"index;not null;size:36" json:"workspace_id"`
	Email       string        `gorm:"not null;size:255" json:"email"`
	Role        WorkspaceRole `gorm:"not null" json:"role"`
	TokenHash   string        `gorm:"uniqueIndex;not null;size:64" json:"-"`
	Status      InviteStatus  `gorm:"not null;default:0" json:"status"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt   time.Time     `gorm:"not null" json:"expires_at"`
}

// TableName returns the table name for WorkspaceInvite.
func (WorkspaceInvite) TableName() string {
	return "workspace_invites"
}
