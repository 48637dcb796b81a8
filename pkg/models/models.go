// Package models defines the persistent entities of the BimHub control
// plane: tenancy (workspaces, projects, memberships), files and upload
// sessions, BIM models with their processed versions, the extracted IFC
// property index, and the OAuth/PAT credential records.
package models

// AllModels returns all models for GORM auto-migration.
// Order matters for foreign key creation.
func AllModels() []any {
	return []any{
		&User{},
		&Workspace{},
		&Project{},
		&WorkspaceMembership{},
		&ProjectMembership{},
		&WorkspaceInvite{},
		&File{},
		&FileLink{},
		&UploadSession{},
		&Model{},
		&ModelVersion{},
		&ProcessingJob{},
		&IfcElement{},
		&IfcPropertySet{},
		&IfcProperty{},
		&IfcQuantitySet{},
		&IfcQuantity{},
		&OAuthApp{},
		&AuthorizationCode{},
		&RefreshToken{},
		&PersonalAccessToken{},
		&OAuthAppAuditLog{},
		&PersonalAccessTokenAuditLog{},
	}
}
