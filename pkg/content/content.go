// Package content provides the content store interface for opaque blob
// storage. Stored bytes are write-once: a key is never overwritten.
package content

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrAlreadyExists is returned when writing to a key that holds data.
	ErrAlreadyExists = errors.New("content already exists at key")

	// ErrInvalidKey is returned for keys that fail validation.
	ErrInvalidKey = errors.New("invalid content key")

	// ErrTransient marks failures worth retrying (network, throttling).
	ErrTransient = errors.New("transient content store error")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("content store is closed")
)

// Health describes the result of a content store health probe.
type Health struct {
	// Healthy reports whether the backend passed the probe.
	Healthy bool

	// Detail carries the failure description when Healthy is false.
	Detail string

	// AvailableBytes is the free capacity, or -1 when the backend cannot
	// report one (object stores).
	AvailableBytes int64
}

// Store defines the interface for blob storage backends.
//
// Keys are opaque slash-separated strings produced by the keys package.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the reader's bytes at key with the given content type.
	// Returns ErrAlreadyExists if the key already holds data; partial
	// writes are never observable.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// OpenRead opens the stored bytes for streaming. Returns (nil, nil)
	// when the key does not exist.
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the bytes at key. Returns whether anything was
	// deleted; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePrefix removes every object under the given key prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Exists reports whether the key holds data.
	Exists(ctx context.Context, key string) (bool, error)

	// Size returns the stored byte count, or -1 with a nil error when the
	// key does not exist.
	Size(ctx context.Context, key string) (int64, error)

	// GenerateUploadURL mints a presigned upload URL for the key,
	// restricted to the content type and valid until expiresAt. Backends
	// without presign support return ("", nil).
	GenerateUploadURL(ctx context.Context, key, contentType string, expiresAt time.Time) (string, error)

	// CheckHealth probes the backend.
	CheckHealth(ctx context.Context) Health

	// Close releases any resources held by the store.
	Close() error
}
