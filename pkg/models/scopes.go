package models

import "strings"

// The closed set of permission scopes. Unknown scopes are rejected at
// creation time with ErrUnknownScope.
const (
	ScopeWorkspacesRead  = "workspaces:read"
	ScopeWorkspacesWrite = "workspaces:write"
	ScopeProjectsRead    = "projects:read"
	ScopeProjectsWrite   = "projects:write"
	ScopeFilesRead       = "files:read"
	ScopeFilesWrite      = "files:write"
	ScopeModelsRead      = "models:read"
	ScopeModelsWrite     = "models:write"
	ScopeProcessingRead  = "processing:read"
	ScopeProcessingWrite = "processing:write"
	ScopeOAuthAppsRead   = "oauth_apps:read"
	ScopeOAuthAppsWrite  = "oauth_apps:write"
	ScopeOAuthAppsAdmin  = "oauth_apps:admin"
	ScopePATsRead        = "pats:read"
	ScopePATsWrite       = "pats:write"
	ScopePATsAdmin       = "pats:admin"
)

var knownScopes = map[string]bool{
	ScopeWorkspacesRead:  true,
	ScopeWorkspacesWrite: true,
	ScopeProjectsRead:    true,
	ScopeProjectsWrite:   true,
	ScopeFilesRead:       true,
	ScopeFilesWrite:      true,
	ScopeModelsRead:      true,
	ScopeModelsWrite:     true,
	ScopeProcessingRead:  true,
	ScopeProcessingWrite: true,
	ScopeOAuthAppsRead:   true,
	ScopeOAuthAppsWrite:  true,
	ScopeOAuthAppsAdmin:  true,
	ScopePATsRead:        true,
	ScopePATsWrite:       true,
	ScopePATsAdmin:       true,
}

// IsKnownScope reports whether s is in the closed scope set.
func IsKnownScope(s string) bool {
	return knownScopes[s]
}

// ValidateScopes returns ErrUnknownScope if any scope is not known.
func ValidateScopes(scopes []string) error {
	for _, s := range scopes {
		if !IsKnownScope(s) {
			return ErrUnknownScope
		}
	}
	return nil
}

// AllScopes returns every known scope, for token issuance in dev mode.
func AllScopes() []string {
	scopes := make([]string, 0, len(knownScopes))
	for s := range knownScopes {
		scopes = append(scopes, s)
	}
	return scopes
}

// JoinScopes renders scopes as the space-separated OAuth claim form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// SplitScopes parses the space-separated OAuth claim form.
func SplitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
