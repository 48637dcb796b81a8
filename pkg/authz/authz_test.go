package authz

import (
	"errors"
	"testing"

	"github.com/bimhub/bimhub/pkg/models"
)

func TestScopeRequirement_Any(t *testing.T) {
	req := RequireAny(models.ScopeFilesRead, models.ScopeFilesWrite)

	if err := req.Check([]string{models.ScopeFilesWrite}); err != nil {
		t.Errorf("Check returned %v for a matching scope", err)
	}
	if err := req.Check([]string{models.ScopeModelsRead}); !errors.Is(err, ErrInsufficientScope) {
		t.Errorf("Check returned %v, want ErrInsufficientScope", err)
	}
	if err := req.Check(nil); !errors.Is(err, ErrInsufficientScope) {
		t.Errorf("Check returned %v for an empty scope set", err)
	}
}

func TestScopeRequirement_All(t *testing.T) {
	req := RequireAll(models.ScopeFilesRead, models.ScopeModelsWrite)

	if err := req.Check([]string{models.ScopeFilesRead, models.ScopeModelsWrite, models.ScopeProjectsRead}); err != nil {
		t.Errorf("Check returned %v when all scopes are present", err)
	}
	if err := req.Check([]string{models.ScopeFilesRead}); !errors.Is(err, ErrInsufficientScope) {
		t.Errorf("Check returned %v, want ErrInsufficientScope", err)
	}
}

func TestScopeRequirement_Empty(t *testing.T) {
	if err := (ScopeRequirement{}).Check(nil); err != nil {
		t.Errorf("empty requirement returned %v", err)
	}
}

func TestPrincipal_TenantBound(t *testing.T) {
	if (Principal{UserID: "u"}).TenantBound() {
		t.Error("principal without workspace reported tenant-bound")
	}
	if !(Principal{UserID: "u", WorkspaceID: "ws"}).TenantBound() {
		t.Error("principal with workspace reported unbound")
	}
}
