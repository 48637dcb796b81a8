package models

import "time"

// OAuthAppAuditLog records security-relevant events on an OAuth app.
// Append-only: rows are never updated or deleted.
type OAuthAppAuditLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SubjectID   string    `gorm:"index;not null;size:36" json:"subject_id"`
	EventType   string    `gorm:"not null;size:64" json:"event_type"`
	ActorUserID string    `gorm:"size:36" json:"actor_user_id,omitempty"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
	Details     string    `gorm:"size:2048" json:"details,omitempty"`
	IPAddress   string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent   string    `gorm:"size:512" json:"user_agent,omitempty"`
}

// TableName returns the table name for OAuthAppAuditLog.
func (OAuthAppAuditLog) TableName() string {
	return "oauth_app_audit_logs"
}

// PersonalAccessTokenAuditLog records security-relevant events on a PAT.
// Append-only: rows are never updated or deleted.
type PersonalAccessTokenAuditLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SubjectID   string    `gorm:"index;not null;size:36" json:"subject_id"`
	EventType   string    `gorm:"not null;size:64" json:"event_type"`
	ActorUserID string    `gorm:"size:36" json:"actor_user_id,omitempty"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
	Details     string    `gorm:"size:2048" json:"details,omitempty"`
	IPAddress   string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent   string    `gorm:"size:512" json:"user_agent,omitempty"`
}

// TableName returns the table name for PersonalAccessTokenAuditLog.
func (PersonalAccessTokenAuditLog) TableName() string {
	return "personal_access_token_audit_logs"
}

// Audit event types.
const (
	AuditEventCreated       = "created"
	AuditEventUpdated       = "updated"
	AuditEventRevoked       = "revoked"
	AuditEventSecretRotated = "secret_rotated"
	AuditEventReuseDetected = "reuse_detected"
	AuditEventUsed          = "used"
)
