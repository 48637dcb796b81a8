package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/bimhub/bimhub/pkg/models"
)

// Claims is the access token payload. Scope is the space-separated scope
// list; WorkspaceID carries the tenant binding and ClientID the OAuth app
// that obtained the token (empty for dev-mode tokens).
type Claims struct {
	jwt.RegisteredClaims

	Scope       string `json:"scope,omitempty"`
	WorkspaceID string `json:"tid,omitempty"`
	ClientID    string `json:"cid,omitempty"`
}

// Scopes returns the parsed scope list.
func (c *Claims) Scopes() []string {
	return models.SplitScopes(c.Scope)
}

// HasScope reports whether the token carries the scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}
