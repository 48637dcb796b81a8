// Package fs provides a filesystem-backed content store implementation.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/content/keys"
)

// metaSuffix is the sidecar file holding the stored content type.
const metaSuffix = ".meta"

// tmpSuffix marks in-flight writes; readers and listers skip it.
const tmpSuffix = ".tmp"

// Store is a filesystem-backed implementation of content.Store.
// Objects are stored as files with the content key as the path.
type Store struct {
	mu       sync.RWMutex
	basePath string
	closed   bool

	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config holds configuration for the filesystem content store.
type Config struct {
	// BasePath is the root directory for content storage.
	// Content keys are stored as paths relative to this directory.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// New creates a new filesystem content store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, err
	}

	return &Store{
		basePath: absPath,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithPath creates a new filesystem content store with default configuration.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// objectPath validates the key and returns the full filesystem path,
// confirming the result stays under the base directory.
func (s *Store) objectPath(key string) (string, error) {
	if err := keys.Validate(key); err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if path != s.basePath && !strings.HasPrefix(path, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key escapes store root", content.ErrInvalidKey)
	}
	return path, nil
}

// Put stores the reader's bytes at key. The write goes to a temporary
// file first and is renamed into place so partial writes never become
// visible. Writing to an existing key fails.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return content.ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return err
	}

	tmpPath := path + tmpSuffix
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if contentType != "" {
		if err := os.WriteFile(path+metaSuffix, []byte(contentType), s.fileMode); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		os.Remove(path + metaSuffix)
		return err
	}

	return nil
}

// OpenRead opens the stored bytes for streaming. Returns (nil, nil) when
// the key does not exist.
func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, content.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

// ContentType returns the stored content type, or "" when none was recorded.
func (s *Store) ContentType(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", content.ErrStoreClosed
	}

	path, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Delete removes the bytes at key and its content type sidecar.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, content.ErrStoreClosed
	}

	path, err := s.objectPath(key)
	if err != nil {
		return false, err
	}

	err = os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	os.Remove(path + metaSuffix)
	s.cleanEmptyDirs(filepath.Dir(path))
	return true, nil
}

// DeletePrefix removes all objects under the given key prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrStoreClosed
	}

	prefixPath, err := s.objectPath(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}

	info, err := os.Stat(prefixPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Nothing to delete
		}
		return err
	}

	if info.IsDir() {
		if err := os.RemoveAll(prefixPath); err != nil {
			return err
		}
		s.cleanEmptyDirs(filepath.Dir(prefixPath))
		return nil
	}

	if err := os.Remove(prefixPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	os.Remove(prefixPath + metaSuffix)
	s.cleanEmptyDirs(filepath.Dir(prefixPath))
	return nil
}

// Exists reports whether the key holds data.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	size, err := s.Size(ctx, key)
	if err != nil {
		return false, err
	}
	return size >= 0, nil
}

// Size returns the stored byte count, or -1 when the key does not exist.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, content.ErrStoreClosed
	}

	path, err := s.objectPath(key)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// GenerateUploadURL returns ("", nil): the filesystem backend cannot mint
// presigned URLs, so callers fall back to server-proxied uploads.
func (s *Store) GenerateUploadURL(ctx context.Context, key, contentType string, expiresAt time.Time) (string, error) {
	return "", nil
}

// CheckHealth writes, reads back, and removes a sentinel object, and
// reports the free space of the backing filesystem.
func (s *Store) CheckHealth(ctx context.Context) content.Health {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return content.Health{Detail: content.ErrStoreClosed.Error(), AvailableBytes: -1}
	}

	sentinel := filepath.Join(s.basePath, ".health")
	payload := []byte(time.Now().Format(time.RFC3339Nano))
	if err := os.WriteFile(sentinel, payload, s.fileMode); err != nil {
		return content.Health{Detail: fmt.Sprintf("sentinel write: %v", err), AvailableBytes: -1}
	}
	read, err := os.ReadFile(sentinel)
	if err != nil || string(read) != string(payload) {
		os.Remove(sentinel)
		return content.Health{Detail: fmt.Sprintf("sentinel read: %v", err), AvailableBytes: -1}
	}
	if err := os.Remove(sentinel); err != nil {
		return content.Health{Detail: fmt.Sprintf("sentinel delete: %v", err), AvailableBytes: -1}
	}

	var stat unix.Statfs_t
	available := int64(-1)
	if err := unix.Statfs(s.basePath, &stat); err == nil {
		available = int64(stat.Bavail) * int64(stat.Bsize)
	}

	return content.Health{Healthy: true, AvailableBytes: available}
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// BasePath returns the base path of the store (for testing).
func (s *Store) BasePath() string {
	return s.basePath
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		err := os.Remove(dir)
		if err != nil {
			// Directory not empty or other error, stop
			break
		}
		dir = filepath.Dir(dir)
	}
}

// Ensure Store implements content.Store.
var _ content.Store = (*Store)(nil)
