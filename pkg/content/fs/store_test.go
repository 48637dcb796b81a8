//go:build integration

package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bimhub/bimhub/pkg/content"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "contentstore-fs-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := NewWithPath(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewWithPath failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
		os.RemoveAll(tmpDir)
	})

	return s
}

func mustPut(t *testing.T, s *Store, key string, data []byte, contentType string) {
	t.Helper()
	if err := s.Put(context.Background(), key, bytes.NewReader(data), contentType); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func TestStore_PutAndOpenRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "ws1/pr1/raw/abc.ifc"
	data := []byte("ISO-10303-21;")
	mustPut(t, s, key, data, "application/x-step")

	rc, err := s.OpenRead(ctx, key)
	if err != nil {
		t.Fatalf("OpenRead failed: %v", err)
	}
	defer rc.Close()

	read, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Errorf("OpenRead returned %q, want %q", read, data)
	}

	// Verify file exists on disk at the key path
	path := filepath.Join(s.BasePath(), "ws1", "pr1", "raw", "abc.ifc")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("content file not found at %s", path)
	}

	contentType, err := s.ContentType(ctx, key)
	if err != nil {
		t.Fatalf("ContentType failed: %v", err)
	}
	if contentType != "application/x-step" {
		t.Errorf("ContentType returned %q", contentType)
	}
}

func TestStore_PutExistingKeyFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "ws1/pr1/raw/dup.ifc"
	mustPut(t, s, key, []byte("first"), "")

	err := s.Put(ctx, key, bytes.NewReader([]byte("second")), "")
	if !errors.Is(err, content.ErrAlreadyExists) {
		t.Errorf("Put returned %v, want ErrAlreadyExists", err)
	}

	// The original bytes must be untouched.
	rc, _ := s.OpenRead(ctx, key)
	defer rc.Close()
	read, _ := io.ReadAll(rc)
	if string(read) != "first" {
		t.Errorf("content changed to %q after refused Put", read)
	}
}

func TestStore_OpenReadAbsentKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rc, err := s.OpenRead(ctx, "ws1/pr1/raw/none.ifc")
	if err != nil {
		t.Fatalf("OpenRead returned error %v, want nil", err)
	}
	if rc != nil {
		rc.Close()
		t.Error("OpenRead returned non-nil reader for absent key")
	}
}

func TestStore_TraversalKeysRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{
		"../outside.ifc",
		"ws1/../../outside.ifc",
		"/etc/passwd",
		"ws1\\pr1\\file.ifc",
	} {
		err := s.Put(ctx, key, bytes.NewReader([]byte("x")), "")
		if !errors.Is(err, content.ErrInvalidKey) {
			t.Errorf("Put(%q) returned %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestStore_SizeAndExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "ws1/pr1/raw/sized.ifc"
	mustPut(t, s, key, []byte("12345"), "")

	size, err := s.Size(ctx, key)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 5 {
		t.Errorf("Size returned %d, want 5", size)
	}

	size, err = s.Size(ctx, "ws1/pr1/raw/none.ifc")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != -1 {
		t.Errorf("Size for absent key returned %d, want -1", size)
	}

	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		t.Errorf("Exists returned (%v, %v), want (true, nil)", exists, err)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "ws1/pr1/raw/gone.ifc"
	mustPut(t, s, key, []byte("x"), "text/plain")

	deleted, err := s.Delete(ctx, key)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Delete returned false for existing key")
	}

	// Sidecar goes with the object.
	if _, err := os.Stat(filepath.Join(s.BasePath(), "ws1", "pr1", "raw", "gone.ifc.meta")); !os.IsNotExist(err) {
		t.Error("expected sidecar to be removed")
	}

	deleted, err = s.Delete(ctx, key)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Error("Delete returned true for absent key")
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustPut(t, s, "ws1/pr1/derived/wexbim/a.wexbim", []byte("a"), "")
	mustPut(t, s, "ws1/pr1/derived/properties/b.json", []byte("b"), "")
	mustPut(t, s, "ws1/pr1/raw/keep.ifc", []byte("keep"), "")

	if err := s.DeletePrefix(ctx, "ws1/pr1/derived/"); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}

	for _, key := range []string{"ws1/pr1/derived/wexbim/a.wexbim", "ws1/pr1/derived/properties/b.json"} {
		size, _ := s.Size(ctx, key)
		if size != -1 {
			t.Errorf("expected %q deleted", key)
		}
	}
	size, _ := s.Size(ctx, "ws1/pr1/raw/keep.ifc")
	if size == -1 {
		t.Error("raw file must survive artifact prefix cleanup")
	}

	// Deleting an absent prefix is a no-op.
	if err := s.DeletePrefix(ctx, "ws9/pr9/derived/"); err != nil {
		t.Errorf("DeletePrefix on absent prefix failed: %v", err)
	}
}

func TestStore_GenerateUploadURLUnsupported(t *testing.T) {
	s := newTestStore(t)

	url, err := s.GenerateUploadURL(context.Background(), "ws1/pr1/uploads/s1.ifc", "application/x-step", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateUploadURL failed: %v", err)
	}
	if url != "" {
		t.Errorf("expected empty URL, got %q", url)
	}
}

func TestStore_CheckHealth(t *testing.T) {
	s := newTestStore(t)

	health := s.CheckHealth(context.Background())
	if !health.Healthy {
		t.Errorf("expected healthy store, got detail %q", health.Detail)
	}
	if health.AvailableBytes <= 0 {
		t.Errorf("expected positive free space, got %d", health.AvailableBytes)
	}

	s.Close()
	health = s.CheckHealth(context.Background())
	if health.Healthy {
		t.Error("expected unhealthy after close")
	}
}

func TestStore_ClosedStoreRefusesOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Close()

	if err := s.Put(ctx, "ws1/pr1/raw/x.ifc", bytes.NewReader(nil), ""); !errors.Is(err, content.ErrStoreClosed) {
		t.Errorf("Put returned %v, want ErrStoreClosed", err)
	}
	if _, err := s.OpenRead(ctx, "ws1/pr1/raw/x.ifc"); !errors.Is(err, content.ErrStoreClosed) {
		t.Errorf("OpenRead returned %v, want ErrStoreClosed", err)
	}
}
