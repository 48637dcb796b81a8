// Package keys builds and validates content store keys. Keys are opaque
// slash-separated strings scoped to a workspace and project so that
// tenancy checks and prefix cleanup need no database lookups.
//
// Key layout:
//
//	{workspaceId}/{projectId}/raw/{random}{ext}
//	{workspaceId}/{projectId}/artifacts/{artifactType}/{random}{ext}
//	{workspaceId}/{projectId}/uploads/{sessionId}/{random}{ext}
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bimhub/bimhub/pkg/content"
)

// Artifact types used in derived keys.
const (
	ArtifactWexBim     = "wexbim"
	ArtifactProperties = "properties"
	ArtifactThumbnail  = "thumbnail"
	ArtifactLog        = "log"
)

// randomID returns a 128-bit URL-safe random identifier.
func randomID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("keys: random source unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// ForRaw returns a key for an uploaded source file.
func ForRaw(workspaceID, projectID, ext string) string {
	return fmt.Sprintf("%s/%s/raw/%s%s", workspaceID, projectID, randomID(), normalizeExt(ext))
}

// ForArtifact returns a key for a processing output.
func ForArtifact(workspaceID, projectID, artifactType, ext string) string {
	return fmt.Sprintf("%s/%s/artifacts/%s/%s%s", workspaceID, projectID, artifactType, randomID(), normalizeExt(ext))
}

// ForUpload returns a temporary key for an in-flight upload session.
// Each call produces a fresh key under the session's directory.
func ForUpload(workspaceID, projectID, sessionID, ext string) string {
	return fmt.Sprintf("%s/%s/uploads/%s/%s%s", workspaceID, projectID, sessionID, randomID(), normalizeExt(ext))
}

// ArtifactPrefix returns the prefix under which every derived artifact of
// a project lives, for prefix cleanup after failed processing.
func ArtifactPrefix(workspaceID, projectID string) string {
	return fmt.Sprintf("%s/%s/artifacts/", workspaceID, projectID)
}

// UploadPrefix returns the prefix holding a session's temporary keys,
// for cleanup after the session fails or expires.
func UploadPrefix(workspaceID, projectID, sessionID string) string {
	return fmt.Sprintf("%s/%s/uploads/%s/", workspaceID, projectID, sessionID)
}

// normalizeExt ensures a leading dot and strips path separators.
func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	ext = strings.ReplaceAll(ext, "/", "")
	ext = strings.ReplaceAll(ext, "\\", "")
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// BelongsToWorkspace reports whether the key is scoped to the workspace.
// The comparison is case-insensitive so backends with case-folding
// semantics cannot be used to dodge tenancy checks.
func BelongsToWorkspace(key, workspaceID string) bool {
	return hasFoldedPrefix(key, workspaceID+"/")
}

// BelongsToProject reports whether the key is scoped to the project
// within the workspace.
func BelongsToProject(key, workspaceID, projectID string) bool {
	return hasFoldedPrefix(key, workspaceID+"/"+projectID+"/")
}

func hasFoldedPrefix(key, prefix string) bool {
	if len(key) < len(prefix) {
		return false
	}
	return strings.EqualFold(key[:len(prefix)], prefix)
}

// Validate rejects keys that could escape the store root or carry
// backend-hostile characters. Valid keys are relative slash-separated
// paths with non-empty segments and no traversal components.
func Validate(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", content.ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: absolute path", content.ErrInvalidKey)
	}
	if strings.ContainsRune(key, '\\') {
		return fmt.Errorf("%w: backslash in key", content.ErrInvalidKey)
	}
	if len(key) >= 2 && key[1] == ':' {
		return fmt.Errorf("%w: drive letter in key", content.ErrInvalidKey)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character in key", content.ErrInvalidKey)
		}
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" {
			return fmt.Errorf("%w: empty path segment", content.ErrInvalidKey)
		}
		if segment == "." || segment == ".." {
			return fmt.Errorf("%w: traversal segment", content.ErrInvalidKey)
		}
	}
	return nil
}
