// Package store provides the entity persistence layer.
//
// This package implements the Store interface for managing platform data
// including workspaces, projects, files, upload sessions, models, extracted
// IFC data, OAuth apps, and personal access tokens.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"
	"time"

	"github.com/bimhub/bimhub/pkg/models"
)

// Store provides the entity persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines. Multi-entity operations (workspace creation, upload
// commit, refresh token rotation, version finalization) are atomic.
type Store interface {
	// ============================================
	// USER OPERATIONS
	// ============================================

	// GetUserByID returns a user by their unique ID (UUID).
	// Returns models.ErrUserNotFound if no user has this ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserBySubject returns a user by their identity provider subject.
	// Returns models.ErrUserNotFound if no user has this subject.
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)

	// ListUsers returns all users.
	// Use with caution for large user counts.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user.
	// The user ID will be generated if empty.
	// Returns models.ErrDuplicateUser if the subject is already taken.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// EnsureUser upserts a user by identity provider subject.
	EnsureUser(ctx context.Context, subject, email, displayName string) (*models.User, error)

	// UpdateLastLogin updates the user's last login timestamp.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateLastLogin(ctx context.Context, userID string, timestamp time.Time) error

	// ============================================
	// WORKSPACE OPERATIONS
	// ============================================

	// GetWorkspace returns a workspace by ID.
	// Returns models.ErrWorkspaceNotFound if it doesn't exist.
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)

	// ListWorkspacesForUser returns all workspaces the user belongs to.
	ListWorkspacesForUser(ctx context.Context, userID string) ([]*models.Workspace, error)

	// CreateWorkspace creates the workspace and an Owner membership for
	// the creator atomically.
	CreateWorkspace(ctx context.Context, workspace *models.Workspace, creatorUserID string) (string, error)

	// UpdateWorkspace updates name and description.
	// Returns models.ErrWorkspaceNotFound if it doesn't exist.
	UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error

	// DeleteWorkspace removes the workspace and everything it owns.
	DeleteWorkspace(ctx context.Context, id string) error

	// GetWorkspaceMembership returns the membership for (workspace, user).
	// Returns models.ErrMembershipNotFound if there is none.
	GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMembership, error)

	// ListWorkspaceMemberships returns all memberships of a workspace.
	ListWorkspaceMemberships(ctx context.Context, workspaceID string) ([]*models.WorkspaceMembership, error)

	// UpsertWorkspaceMembership creates or updates a member's role.
	// Returns models.ErrLastOwner when demoting the only owner.
	UpsertWorkspaceMembership(ctx context.Context, membership *models.WorkspaceMembership) error

	// RemoveWorkspaceMembership removes a member and their project
	// memberships in that workspace.
	// Returns models.ErrLastOwner when removing the only owner.
	RemoveWorkspaceMembership(ctx context.Context, workspaceID, userID string) error

	// CreateWorkspaceInvite creates a pending invite.
	CreateWorkspaceInvite(ctx context.Context, invite *models.WorkspaceInvite) (string, error)

	// GetWorkspaceInvite returns an invite by ID.
	GetWorkspaceInvite(ctx context.Context, id string) (*models.WorkspaceInvite, error)

	// ListWorkspaceInvites returns all invites of a workspace.
	ListWorkspaceInvites(ctx context.Context, workspaceID string) ([]*models.WorkspaceInvite, error)

	// AcceptWorkspaceInvite redeems a pending invite by token hash and
	// creates the membership atomically.
	// Returns models.ErrInviteExpired for invites past their deadline.
	AcceptWorkspaceInvite(ctx context.Context, tokenHash, userID string, now time.Time) (*models.WorkspaceMembership, error)

	// RevokeWorkspaceInvite revokes a pending invite.
	RevokeWorkspaceInvite(ctx context.Context, id string) error

	// ============================================
	// PROJECT OPERATIONS
	// ============================================

	// GetProject returns a project by ID.
	// Returns models.ErrProjectNotFound if it doesn't exist.
	GetProject(ctx context.Context, id string) (*models.Project, error)

	// ListProjects returns all projects in a workspace.
	ListProjects(ctx context.Context, workspaceID string) ([]*models.Project, error)

	// CreateProject creates a project.
	// Returns models.ErrDuplicateProject if the name is taken in the
	// workspace.
	CreateProject(ctx context.Context, project *models.Project) (string, error)

	// UpdateProject updates name and description.
	UpdateProject(ctx context.Context, project *models.Project) error

	// DeleteProject removes the project and everything it owns.
	DeleteProject(ctx context.Context, id string) error

	// GetProjectMembership returns the membership for (project, user).
	GetProjectMembership(ctx context.Context, projectID, userID string) (*models.ProjectMembership, error)

	// ListProjectMemberships returns all memberships of a project.
	ListProjectMemberships(ctx context.Context, projectID string) ([]*models.ProjectMembership, error)

	// UpsertProjectMembership creates or updates a member's role.
	UpsertProjectMembership(ctx context.Context, membership *models.ProjectMembership) error

	// RemoveProjectMembership removes a project member.
	RemoveProjectMembership(ctx context.Context, projectID, userID string) error

	// ============================================
	// FILE OPERATIONS
	// ============================================

	// GetFile returns a file record by ID.
	// Returns models.ErrFileNotFound if it doesn't exist.
	GetFile(ctx context.Context, id string) (*models.File, error)

	// ListFiles pages through non-deleted files in a project.
	ListFiles(ctx context.Context, projectID string, category models.FileCategory, offset, limit int) ([]*models.File, int64, error)

	// CreateFile creates a file record.
	CreateFile(ctx context.Context, file *models.File) (string, error)

	// SoftDeleteFile marks the file deleted without touching stored bytes.
	SoftDeleteFile(ctx context.Context, id string) error

	// CreateFileLink records a derivation relationship between files.
	CreateFileLink(ctx context.Context, link *models.FileLink) (string, error)

	// ListFileLinks returns links where the file is source or target.
	ListFileLinks(ctx context.Context, fileID string) ([]*models.FileLink, error)

	// ============================================
	// UPLOAD SESSION OPERATIONS
	// ============================================

	// GetUploadSession returns a session by ID.
	GetUploadSession(ctx context.Context, id string) (*models.UploadSession, error)

	// ListUploadSessions returns all sessions of a project.
	ListUploadSessions(ctx context.Context, projectID string) ([]*models.UploadSession, error)

	// CreateUploadSession creates a session in Reserved status.
	CreateUploadSession(ctx context.Context, session *models.UploadSession) (string, error)

	// TransitionUploadSession moves the session between statuses with a
	// guarded update.
	// Returns models.ErrInvalidSessionState if the session is not in the
	// expected status.
	TransitionUploadSession(ctx context.Context, id string, from, to models.UploadStatus) error

	// SetUploadSessionStorage records temp key and direct upload URL.
	SetUploadSessionStorage(ctx context.Context, id, tempKey, directURL string) error

	// CommitUploadSession creates the File record and marks the session
	// committed atomically.
	CommitUploadSession(ctx context.Context, id string, expected models.UploadStatus, file *models.File) (*models.File, error)

	// FailUploadSession moves a non-terminal session to Failed.
	FailUploadSession(ctx context.Context, id, reason string) error

	// ExpireStaleUploadSessions marks non-terminal sessions past their
	// deadline as Expired and returns them.
	ExpireStaleUploadSessions(ctx context.Context, now time.Time) ([]*models.UploadSession, error)

	// ============================================
	// MODEL AND VERSION OPERATIONS
	// ============================================

	// GetModel returns a model by ID.
	GetModel(ctx context.Context, id string) (*models.Model, error)

	// ListModels returns all models in a project.
	ListModels(ctx context.Context, projectID string) ([]*models.Model, error)

	// CreateModel creates a model.
	CreateModel(ctx context.Context, model *models.Model) (string, error)

	// DeleteModel removes the model, its versions, and extracted data.
	DeleteModel(ctx context.Context, id string) error

	// GetModelVersion returns a version by ID.
	GetModelVersion(ctx context.Context, id string) (*models.ModelVersion, error)

	// GetModelVersionByNumber returns a version by (model, number).
	GetModelVersionByNumber(ctx context.Context, modelID string, versionNumber int) (*models.ModelVersion, error)

	// ListModelVersions returns all versions of a model, oldest first.
	ListModelVersions(ctx context.Context, modelID string) ([]*models.ModelVersion, error)

	// CreateModelVersion assigns the next dense version number atomically.
	CreateModelVersion(ctx context.Context, version *models.ModelVersion) (string, error)

	// TransitionModelVersion moves the version between statuses with a
	// guarded update.
	TransitionModelVersion(ctx context.Context, id string, from, to models.VersionStatus) error

	// FinalizeModelVersion marks a processing version Ready and records
	// artifact file IDs atomically.
	FinalizeModelVersion(ctx context.Context, id, wexBimFileID, propertiesFileID string, processedAt time.Time) error

	// FailModelVersion marks a non-terminal version Failed.
	FailModelVersion(ctx context.Context, id, errorMessage string, processedAt time.Time) error

	// GetProcessingJob returns a job record by ID.
	GetProcessingJob(ctx context.Context, id string) (*models.ProcessingJob, error)

	// ListProcessingJobs returns all jobs for a version.
	ListProcessingJobs(ctx context.Context, modelVersionID string) ([]*models.ProcessingJob, error)

	// CreateProcessingJob creates a job record in Queued status.
	CreateProcessingJob(ctx context.Context, job *models.ProcessingJob) (string, error)

	// StartProcessingJob marks a queued job Running.
	StartProcessingJob(ctx context.Context, id string, startedAt time.Time) error

	// CompleteProcessingJob marks a running job Completed.
	CompleteProcessingJob(ctx context.Context, id string, completedAt time.Time) error

	// FailProcessingJob marks a non-terminal job Failed.
	FailProcessingJob(ctx context.Context, id, errorMessage string, completedAt time.Time) error

	// ============================================
	// IFC ELEMENT OPERATIONS
	// ============================================

	// ReplaceIfcElements stores extracted elements for a version,
	// replacing anything already there. Duplicate entity labels keep the
	// last occurrence.
	ReplaceIfcElements(ctx context.Context, modelVersionID string, elements []*models.IfcElement) error

	// GetIfcElementByLabel returns one element with sets loaded.
	GetIfcElementByLabel(ctx context.Context, modelVersionID string, entityLabel int) (*models.IfcElement, error)

	// GetIfcElementByGlobalID resolves an element by IFC GlobalId.
	GetIfcElementByGlobalID(ctx context.Context, modelVersionID, globalID string) (*models.IfcElement, error)

	// ListIfcElements pages through elements ordered by entity label.
	ListIfcElements(ctx context.Context, modelVersionID, typeName string, offset, limit int) ([]*models.IfcElement, int64, error)

	// CountIfcElements counts elements of a version.
	CountIfcElements(ctx context.Context, modelVersionID string) (int64, error)

	// ============================================
	// OAUTH OPERATIONS
	// ============================================

	// GetOAuthApp returns an app by ID.
	GetOAuthApp(ctx context.Context, id string) (*models.OAuthApp, error)

	// GetOAuthAppByClientID returns an app by its public client_id.
	GetOAuthAppByClientID(ctx context.Context, clientID string) (*models.OAuthApp, error)

	// ListOAuthApps returns all apps of a workspace.
	ListOAuthApps(ctx context.Context, workspaceID string) ([]*models.OAuthApp, error)

	// CreateOAuthApp creates an app.
	CreateOAuthApp(ctx context.Context, app *models.OAuthApp) (string, error)

	// UpdateOAuthApp updates mutable app fields.
	UpdateOAuthApp(ctx context.Context, app *models.OAuthApp) error

	// UpdateOAuthAppSecret replaces the client secret hash.
	UpdateOAuthAppSecret(ctx context.Context, id, secretHash string) error

	// DeleteOAuthApp removes the app and revokes its issued tokens.
	DeleteOAuthApp(ctx context.Context, id string) error

	// CreateAuthorizationCode stores a hashed single-use code.
	CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (string, error)

	// ConsumeAuthorizationCode atomically redeems a code by hash.
	// Returns models.ErrAuthCodeNotFound for unknown, used, or expired
	// codes alike.
	ConsumeAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (*models.AuthorizationCode, error)

	// PurgeExpiredAuthorizationCodes removes codes past their expiry.
	PurgeExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)

	// CreateRefreshToken stores a hashed refresh token.
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) (string, error)

	// GetRefreshTokenByHash returns a token by hash.
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// RotateRefreshToken redeems the presented token and issues its
	// successor atomically.
	// Returns models.ErrTokenReuseDetected after revoking the family when
	// a rotated or revoked token is presented.
	RotateRefreshToken(ctx context.Context, tokenHash string, successor *models.RefreshToken, now time.Time) (*models.RefreshToken, error)

	// RevokeRefreshToken revokes a single token.
	RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) error

	// RevokeTokenFamily revokes every live token in a family.
	RevokeTokenFamily(ctx context.Context, familyID, reason string, now time.Time) error

	// ============================================
	// PERSONAL ACCESS TOKEN OPERATIONS
	// ============================================

	// GetPersonalAccessToken returns a token record by ID.
	GetPersonalAccessToken(ctx context.Context, id string) (*models.PersonalAccessToken, error)

	// GetPersonalAccessTokenByHash returns a token record by hash.
	GetPersonalAccessTokenByHash(ctx context.Context, tokenHash string) (*models.PersonalAccessToken, error)

	// ListPersonalAccessTokens lists tokens in a workspace, optionally
	// restricted to one user.
	ListPersonalAccessTokens(ctx context.Context, workspaceID, userID string) ([]*models.PersonalAccessToken, error)

	// CreatePersonalAccessToken creates a token record.
	// Returns models.ErrUnknownScope for scopes outside the closed set.
	CreatePersonalAccessToken(ctx context.Context, token *models.PersonalAccessToken) (string, error)

	// RevokePersonalAccessToken revokes a token.
	// Returns models.ErrPATRevoked when it is already revoked.
	RevokePersonalAccessToken(ctx context.Context, id, reason string, now time.Time) error

	// TouchPersonalAccessToken records last-use metadata.
	TouchPersonalAccessToken(ctx context.Context, id, ipAddress string, usedAt time.Time) error

	// ============================================
	// AUDIT LOG OPERATIONS
	// ============================================

	// AppendOAuthAppAudit appends an OAuth app audit entry.
	AppendOAuthAppAudit(ctx context.Context, entry *models.OAuthAppAuditLog) (string, error)

	// ListOAuthAppAudit returns audit entries for an app, oldest first.
	ListOAuthAppAudit(ctx context.Context, subjectID string) ([]*models.OAuthAppAuditLog, error)

	// AppendPersonalAccessTokenAudit appends a PAT audit entry.
	AppendPersonalAccessTokenAudit(ctx context.Context, entry *models.PersonalAccessTokenAuditLog) (string, error)

	// ListPersonalAccessTokenAudit returns audit entries for a token,
	// oldest first.
	ListPersonalAccessTokenAudit(ctx context.Context, subjectID string) ([]*models.PersonalAccessTokenAuditLog, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies database connectivity.
	Healthcheck(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
