package models

import (
	"fmt"
	"time"
)

// ClientType distinguishes clients that can keep a secret from those
// that cannot (browser apps, native apps).
type ClientType string

const (
	ClientTypePublic       ClientType = "public"
	ClientTypeConfidential ClientType = "confidential"
)

// IsValid checks if the client type is known.
func (t ClientType) IsValid() bool {
	return t == ClientTypePublic || t == ClientTypeConfidential
}

// CodeChallengeMethod is the PKCE transformation applied to the verifier.
type CodeChallengeMethod string

const (
	CodeChallengeS256  CodeChallengeMethod = "S256"
	CodeChallengePlain CodeChallengeMethod = "plain"
)

// OAuthApp is a registered OAuth client, bound to a workspace.
// ClientSecretHash is present iff ClientType is confidential.
type OAuthApp struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID      string      `gorm:"index;not null;size:36" json:"workspace_id"`
	Name             string      `gorm:"not null;size:255" json:"name"`
	Description      string      `gorm:"size:1024" json:"description,omitempty"`
	ClientType       ClientType  `gorm:"not null;size:16" json:"client_type"`
	ClientID         string      `gorm:"uniqueIndex;not null;size:64" json:"client_id"`
	ClientSecretHash string      `gorm:"size:128" json:"-"`
	RedirectURIs     StringSlice `gorm:"type:text" json:"redirect_uris"`
	AllowedScopes    StringSlice `gorm:"type:text" json:"allowed_scopes"`
	IsEnabled        bool        `gorm:"not null;default:true" json:"is_enabled"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
	CreatedByUserID  string      `gorm:"size:36" json:"created_by_user_id"`
}

// TableName returns the table name for OAuthApp.
func (OAuthApp) TableName() string {
	return "oauth_apps"
}

// Validate checks if the app has valid configuration.
func (a *OAuthApp) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if !a.ClientType.IsValid() {
		return fmt.Errorf("invalid client type %q", a.ClientType)
	}
	if len(a.RedirectURIs) == 0 {
		return fmt.Errorf("at least one redirect uri is required")
	}
	if a.ClientType == ClientTypeConfidential && a.ClientSecretHash == "" {
		return fmt.Errorf("confidential clients require a client secret")
	}
	return nil
}

// HasRedirectURI reports whether uri exactly matches a registered URI.
func (a *OAuthApp) HasRedirectURI(uri string) bool {
	for _, u := range a.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsScopes reports whether every requested scope is registered.
func (a *OAuthApp) AllowsScopes(scopes []string) bool {
	allowed := make(map[string]bool, len(a.AllowedScopes))
	for _, s := range a.AllowedScopes {
		allowed[s] = true
	}
	for _, s := range scopes {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// AuthorizationCode is a single-use, hashed authorization code with a
// short TTL. The raw code is returned to the client exactly once.
type AuthorizationCode struct {
	ID                  string              `gorm:"primaryKey;size:36" json:"id"`
	CodeHash            string              `gorm:"uniqueIndex;not null;size:64" json:"-"`
	OAuthAppID          string              `gorm:"index;not null;size:36" json:"oauth_app_id"`
	UserID              string              `gorm:"not null;size:36" json:"user_id"`
	WorkspaceID         string              `gorm:"not null;size:36" json:"workspace_id"`
	Scopes              StringSlice         `gorm:"type:text" json:"scopes"`
	RedirectURI         string              `gorm:"not null;size:2048" json:"redirect_uri"`
	CodeChallenge       string              `gorm:"size:128" json:"-"`
	CodeChallengeMethod CodeChallengeMethod `gorm:"size:8" json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time           `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt           time.Time           `gorm:"not null" json:"expires_at"`
	IsUsed              bool                `gorm:"not null;default:false" json:"is_used"`
	UsedAt              *time.Time          `json:"used_at,omitempty"`
}

// TableName returns the table name for AuthorizationCode.
func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}

// RefreshToken is an opaque rotating credential stored only as a
// SHA-256 hash. All tokens descending from one authorization share a
// TokenFamilyID; presenting a revoked token revokes the whole family.
type RefreshToken struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	TokenHash         string      `gorm:"uniqueIndex;not null;size:64" json:"-"`
	OAuthAppID        string      `gorm:"index;size:36" json:"oauth_app_id,omitempty"`
	UserID            string      `gorm:"index;not null;size:36" json:"user_id"`
	WorkspaceID       string      `gorm:"not null;size:36" json:"workspace_id"`
	Scopes            StringSlice `gorm:"type:text" json:"scopes"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt         time.Time   `gorm:"not null" json:"expires_at"`
	IsRevoked         bool        `gorm:"not null;default:false" json:"is_revoked"`
	RevokedAt         *time.Time  `json:"revoked_at,omitempty"`
	RevokedReason     string      `gorm:"size:64" json:"revoked_reason,omitempty"`
	ParentTokenID     *string     `gorm:"size:36" json:"parent_token_id,omitempty"`
	ReplacedByTokenID *string     `gorm:"size:36" json:"replaced_by_token_id,omitempty"`
	TokenFamilyID     string      `gorm:"index;not null;size:36" json:"token_family_id"`
	IPAddress         string      `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent         string      `gorm:"size:512" json:"user_agent,omitempty"`
}

// TableName returns the table name for RefreshToken.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Revocation reasons recorded on refresh tokens.
const (
	RevokedReasonRotation      = "token_rotation"
	RevokedReasonReuseDetected = "token_reuse_detected"
	RevokedReasonUserRequest   = "user_request"
)
