package models

import "time"

// PersonalAccessToken is a long-lived workspace-bound bearer credential.
// The raw token is shown once; only its SHA-256 hash is stored. The
// TokenPrefix keeps the first characters of the random portion so users
// can recognize the token in listings.
type PersonalAccessToken struct {
	ID                   string      `gorm:"primaryKey;size:36" json:"id"`
	TokenHash            string      `gorm:"uniqueIndex;not null;size:64" json:"-"`
	TokenPrefix          string      `gorm:"not null;size:16" json:"token_prefix"`
	UserID               string      `gorm:"index;not null;size:36" json:"user_id"`
	WorkspaceID          string      `gorm:"index;not null;size:36" json:"workspace_id"`
	Name                 string      `gorm:"not null;size:255" json:"name"`
	Description          string      `gorm:"size:1024" json:"description,omitempty"`
	Scopes               StringSlice `gorm:"type:text" json:"scopes"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt            time.Time   `gorm:"not null" json:"expires_at"`
	LastUsedAt           *time.Time  `json:"last_used_at,omitempty"`
	LastUsedIPAddress    string      `gorm:"size:64" json:"last_used_ip_address,omitempty"`
	IsRevoked            bool        `gorm:"not null;default:false" json:"is_revoked"`
	RevokedAt            *time.Time  `json:"revoked_at,omitempty"`
	RevokedReason        string      `gorm:"size:64" json:"revoked_reason,omitempty"`
	CreatedFromIPAddress string      `gorm:"size:64" json:"created_from_ip_address,omitempty"`
}

// TableName returns the table name for PersonalAccessToken.
func (PersonalAccessToken) TableName() string {
	return "personal_access_tokens"
}
