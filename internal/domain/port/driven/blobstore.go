package driven

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by SecureBlobStore.Get when no entry exists for
// the service/key pair. It is distinct from a read failure.
var ErrBlobNotFound = errors.New("secure blob not found")

// SecureBlobStore defines the driven port for the OS secret store. It stores
// one opaque blob per service/key pair; callers own the encoding.
type SecureBlobStore interface {
	// Get returns the blob stored under service/key, or ErrBlobNotFound.
	Get(ctx context.Context, service, key string) ([]byte, error)

	// Set stores or replaces the blob under service/key.
	Set(ctx context.Context, service, key string, data []byte) error
}
