// Package storage abstracts where rendered worksheet PDFs live: the
// local filesystem in development, Cloudflare R2 in production.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the interface for PDF object storage. All methods are
// context-aware for timeout and cancellation support.
type Store interface {
	// Put stores data at key. Overwrites unless opts forbid it.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at key. Caller must close the reader.
	// Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Idempotent.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns an access URL for the object, presigned for the
	// given duration where the backend supports it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	// MaxSize caps the object size in bytes; 0 means no limit.
	MaxSize int64
	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo holds metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when the key already exists and
	// overwrite is disabled.
	ErrKeyExists = errors.New("object already exists at this key")

	// ErrInvalidKey is returned for empty keys or path traversal.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrTooLarge is returned when an object exceeds MaxSize.
	ErrTooLarge = errors.New("object exceeds maximum size")
)

// StoreError wraps storage failures with the operation and key.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the object was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PDFKey builds the storage key for a rendered worksheet PDF.
// Format: pdfs/{ownerID}/{fileKey}.pdf
func PDFKey(ownerID uuid.UUID, fileKey string) string {
	return fmt.Sprintf("pdfs/%s/%s.pdf", ownerID, fileKey)
}
