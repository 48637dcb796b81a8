// Package memory provides an in-memory content store for tests and
// single-process development setups. Contents are lost on restart.
package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/content/keys"
)

type object struct {
	data        []byte
	contentType string
}

// Store is an in-memory implementation of content.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	closed  bool
}

// New creates an empty in-memory content store.
func New() *Store {
	return &Store{
		objects: make(map[string]object),
	}
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := keys.Validate(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return content.ErrStoreClosed
	}
	if _, ok := s.objects[key]; ok {
		return content.ErrAlreadyExists
	}
	s.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := keys.Validate(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, content.ErrStoreClosed
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := keys.Validate(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, content.ErrStoreClosed
	}
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return content.ErrStoreClosed
	}
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	size, err := s.Size(ctx, key)
	if err != nil {
		return false, err
	}
	return size >= 0, nil
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	if err := keys.Validate(key); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, content.ErrStoreClosed
	}
	obj, ok := s.objects[key]
	if !ok {
		return -1, nil
	}
	return int64(len(obj.data)), nil
}

// GenerateUploadURL returns ("", nil): the memory backend cannot mint
// presigned URLs.
func (s *Store) GenerateUploadURL(ctx context.Context, key, contentType string, expiresAt time.Time) (string, error) {
	return "", nil
}

func (s *Store) CheckHealth(ctx context.Context) content.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return content.Health{Detail: content.ErrStoreClosed.Error(), AvailableBytes: -1}
	}
	return content.Health{Healthy: true, AvailableBytes: -1}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored objects (for testing).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Ensure Store implements content.Store.
var _ content.Store = (*Store)(nil)
