package models

import "time"

// UploadStatus is the state of an upload session. Transitions are
// monotonic: Reserved -> Uploading -> Committed, with Failed and Expired
// as alternative terminal states. No transition leaves a terminal state.
type UploadStatus int

const (
	UploadStatusReserved  UploadStatus = 0
	UploadStatusUploading UploadStatus = 1
	UploadStatusCommitted UploadStatus = 2
	UploadStatusFailed    UploadStatus = 3
	UploadStatusExpired   UploadStatus = 4
)

// IsTerminal reports whether no further transitions are allowed.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusCommitted || s == UploadStatusFailed || s == UploadStatusExpired
}

func (s UploadStatus) String() string {
	switch s {
	case UploadStatusReserved:
		return "reserved"
	case UploadStatusUploading:
		return "uploading"
	case UploadStatusCommitted:
		return "committed"
	case UploadStatusFailed:
		return "failed"
	case UploadStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// UploadMode selects how bytes reach the content store.
type UploadMode int

const (
	// UploadModeServerProxy streams bytes through the API server.
	UploadModeServerProxy UploadMode = 0
	// UploadModeDirectToBlob uploads straight to the backend via a
	// presigned URL; only supported by backends that can mint one.
	UploadModeDirectToBlob UploadMode = 1
)

// UploadSession is the short-lived coordination record for transferring
// bytes into the content store.
type UploadSession struct {
	ID                string       `gorm:"primaryKey;size:36" json:"id"`
	ProjectID         string       `gorm:"index;not null;size:36" json:"project_id"`
	FileName          string       `gorm:"not null;size:512" json:"file_name"`
	ContentType       string       `gorm:"size:255" json:"content_type,omitempty"`
	ExpectedSizeBytes *int64       `json:"expected_size_bytes,omitempty"`
	Status            UploadStatus `gorm:"not null;default:0" json:"status"`
	UploadMode        UploadMode   `gorm:"not null;default:0" json:"upload_mode"`
	TempStorageKey    string       `gorm:"size:1024" json:"temp_storage_key,omitempty"`
	DirectUploadURL   string       `gorm:"size:4096" json:"direct_upload_url,omitempty"`
	CommittedFileID   *string      `gorm:"size:36" json:"committed_file_id,omitempty"`
	FailureReason     string       `gorm:"size:1024" json:"failure_reason,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt         time.Time    `gorm:"index;not null" json:"expires_at"`
}

// TableName returns the table name for UploadSession.
func (UploadSession) TableName() string {
	return "upload_sessions"
}
