package models

import "time"

// Model is a named BIM model within a project.
type Model struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"index;not null;size:36" json:"project_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Model.
func (Model) TableName() string {
	return "bim_models"
}

// VersionStatus is the processing state of a model version. Transitions
// are linear: Pending -> Processing -> Ready | Failed.
type VersionStatus int

const (
	VersionStatusPending    VersionStatus = 0
	VersionStatusProcessing VersionStatus = 1
	VersionStatusReady      VersionStatus = 2
	VersionStatusFailed     VersionStatus = 3
)

func (s VersionStatus) String() string {
	switch s {
	case VersionStatusPending:
		return "pending"
	case VersionStatusProcessing:
		return "processing"
	case VersionStatusReady:
		return "ready"
	case VersionStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ModelVersion is an immutable version of a model. WexBimFileID and
// PropertiesFileID are set only when Status is Ready. (ModelID,
// VersionNumber) is unique and dense per model.
type ModelVersion struct {
	ID               string        `gorm:"primaryKey;size:36" json:"id"`
	ModelID          string        `gorm:"uniqueIndex:idx_model_version;not null;size:36" json:"model_id"`
	VersionNumber    int           `gorm:"uniqueIndex:idx_model_version;not null" json:"version_number"`
	IfcFileID        string        `gorm:"not null;size:36" json:"ifc_file_id"`
	WexBimFileID     *string       `gorm:"size:36" json:"wexbim_file_id,omitempty"`
	PropertiesFileID *string       `gorm:"size:36" json:"properties_file_id,omitempty"`
	Status           VersionStatus `gorm:"not null;default:0" json:"status"`
	ErrorMessage     string        `gorm:"size:4000" json:"error_message,omitempty"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt      *time.Time    `json:"processed_at,omitempty"`
}

// TableName returns the table name for ModelVersion.
func (ModelVersion) TableName() string {
	return "model_versions"
}

// JobStatus is the lifecycle state of a processing job record. This is
// the durable job row; the idempotency ledger is a separate concept.
type JobStatus int

const (
	JobStatusQueued    JobStatus = 0
	JobStatusRunning   JobStatus = 1
	JobStatusCompleted JobStatus = 2
	JobStatusFailed    JobStatus = 3
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusQueued:
		return "queued"
	case JobStatusRunning:
		return "running"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProcessingJob records one enqueued unit of background work.
type ProcessingJob struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ModelVersionID string     `gorm:"index;not null;size:36" json:"model_version_id"`
	JobType        string     `gorm:"not null;size:64" json:"job_type"`
	Status         JobStatus  `gorm:"not null;default:0" json:"status"`
	ErrorMessage   string     `gorm:"size:4000" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for ProcessingJob.
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}
