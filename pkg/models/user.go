package models

import (
	"fmt"
	"time"
)

// User represents an authenticated principal. The Subject identifies the
// external identity (OIDC subject or dev-auth subject) and is unique.
type User struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Subject     string     `gorm:"uniqueIndex;not null;size:255" json:"subject"`
	Email       string     `gorm:"size:255" json:"email,omitempty"`
	DisplayName string     `gorm:"size:255" json:"display_name,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// GetDisplayName returns the display name, or the subject if not set.
func (u *User) GetDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Subject
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}
