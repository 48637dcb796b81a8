package models

import "time"

// FileCategory classifies the stored content.
type FileCategory string

const (
	FileCategoryOther      FileCategory = "other"
	FileCategoryIfc        FileCategory = "ifc"
	FileCategoryWexBim     FileCategory = "wexbim"
	FileCategoryProperties FileCategory = "properties"
	FileCategoryThumbnail  FileCategory = "thumbnail"
	FileCategoryLog        FileCategory = "log"
)

// IsValid checks if the category is known.
func (c FileCategory) IsValid() bool {
	switch c {
	case FileCategoryOther, FileCategoryIfc, FileCategoryWexBim,
		FileCategoryProperties, FileCategoryThumbnail, FileCategoryLog:
		return true
	}
	return false
}

// File is a metadata record pointing at an opaque key in the content
// store. Soft deletion flips IsDeleted; the stored bytes may be retained
// until garbage collection.
type File struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	ProjectID       string       `gorm:"index;not null;size:36" json:"project_id"`
	Name            string       `gorm:"not null;size:512" json:"name"`
	ContentType     string       `gorm:"size:255" json:"content_type,omitempty"`
	SizeBytes       int64        `gorm:"not null" json:"size_bytes"`
	Checksum        string       `gorm:"size:128" json:"checksum,omitempty"`
	Kind            string       `gorm:"size:64" json:"kind,omitempty"`
	Category        FileCategory `gorm:"not null;size:32;default:other" json:"category"`
	StorageProvider string       `gorm:"not null;size:32" json:"storage_provider"`
	StorageKey      string       `gorm:"not null;size:1024" json:"storage_key"`
	IsDeleted       bool         `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt       *time.Time   `json:"deleted_at,omitempty"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// FileLinkType expresses a derivation relationship between files.
type FileLinkType string

const (
	FileLinkDerivedFrom  FileLinkType = "derived_from"
	FileLinkThumbnailOf  FileLinkType = "thumbnail_of"
	FileLinkPropertiesOf FileLinkType = "properties_of"
	FileLinkLogOf        FileLinkType = "log_of"
)

// FileLink relates a derived file to its source. Links never cascade
// deletes; they are read-time joins only.
type FileLink struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	SourceFileID string       `gorm:"index;not null;size:36" json:"source_file_id"`
	TargetFileID string       `gorm:"index;not null;size:36" json:"target_file_id"`
	LinkType     FileLinkType `gorm:"not null;size:32" json:"link_type"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for FileLink.
func (FileLink) TableName() string {
	return "file_links"
}
