package keys

import (
	"errors"
	"strings"
	"testing"

	"github.com/bimhub/bimhub/pkg/content"
)

func TestKeyBuilders(t *testing.T) {
	t.Run("raw key is project scoped", func(t *testing.T) {
		key := ForRaw("ws-1", "pr-1", ".ifc")

		if !strings.HasPrefix(key, "ws-1/pr-1/raw/") {
			t.Errorf("unexpected key %q", key)
		}
		if !strings.HasSuffix(key, ".ifc") {
			t.Errorf("expected .ifc suffix, got %q", key)
		}
		if err := Validate(key); err != nil {
			t.Errorf("generated key failed validation: %v", err)
		}
	})

	t.Run("artifact key includes type", func(t *testing.T) {
		key := ForArtifact("ws-1", "pr-1", ArtifactWexBim, "wexbim")

		if !strings.HasPrefix(key, "ws-1/pr-1/artifacts/wexbim/") {
			t.Errorf("unexpected key %q", key)
		}
		if !strings.HasSuffix(key, ".wexbim") {
			t.Errorf("expected normalized extension, got %q", key)
		}
		if !strings.HasPrefix(key, ArtifactPrefix("ws-1", "pr-1")) {
			t.Error("artifact key must live under the artifact prefix")
		}
	})

	t.Run("upload key is session scoped", func(t *testing.T) {
		key := ForUpload("ws-1", "pr-1", "sess-1", ".ifc")

		if !strings.HasPrefix(key, UploadPrefix("ws-1", "pr-1", "sess-1")) {
			t.Errorf("unexpected key %q", key)
		}
		if !strings.HasSuffix(key, ".ifc") {
			t.Errorf("expected .ifc suffix, got %q", key)
		}
	})

	t.Run("raw keys are unique", func(t *testing.T) {
		a := ForRaw("ws-1", "pr-1", ".ifc")
		b := ForRaw("ws-1", "pr-1", ".ifc")
		if a == b {
			t.Error("expected distinct random keys")
		}
	})
}

func TestBelongsTo(t *testing.T) {
	key := ForRaw("ws-1", "pr-1", ".ifc")

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"matching workspace", BelongsToWorkspace(key, "ws-1"), true},
		{"other workspace", BelongsToWorkspace(key, "ws-2"), false},
		{"case-folded workspace", BelongsToWorkspace(key, "WS-1"), true},
		{"matching project", BelongsToProject(key, "ws-1", "pr-1"), true},
		{"other project", BelongsToProject(key, "ws-1", "pr-2"), false},
		{"case-folded project", BelongsToProject(key, "WS-1", "PR-1"), true},
		{"workspace as prefix of longer id", BelongsToWorkspace(key, "ws"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []string{
		"ws/pr/raw/abc.ifc",
		"ws/pr/derived/wexbim/abc.wexbim",
		"a/b",
	}
	for _, key := range valid {
		if err := Validate(key); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		"/ws/pr/raw/abc.ifc",
		"ws/../other/raw/abc.ifc",
		"..",
		"ws/pr//abc.ifc",
		"ws/pr/./abc.ifc",
		"ws\\pr\\abc.ifc",
		"c:/windows/system32",
		"ws/pr/raw/abc\x00.ifc",
	}
	for _, key := range invalid {
		err := Validate(key)
		if err == nil {
			t.Errorf("Validate(%q) = nil, want error", key)
			continue
		}
		if !errors.Is(err, content.ErrInvalidKey) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}
