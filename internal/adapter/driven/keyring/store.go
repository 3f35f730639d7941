// Package keyring implements driven.SecureBlobStore on top of the operating
// system credential store (macOS Keychain, Windows Credential Manager, or the
// Secret Service on Linux).
package keyring

import (
	"context"
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Compile-time check that Store implements driven.SecureBlobStore.
var _ driven.SecureBlobStore = (*Store)(nil)

// Store keeps each blob as the password of one keyring entry.
type Store struct{}

// NewStore creates a keyring-backed store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the blob stored under service/key, or driven.ErrBlobNotFound.
func (s *Store) Get(ctx context.Context, service, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secret, err := gokeyring.Get(service, key)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return nil, driven.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}
	return []byte(secret), nil
}

// Set replaces the blob stored under service/key.
func (s *Store) Set(ctx context.Context, service, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := gokeyring.Set(service, key, string(data)); err != nil {
		return fmt.Errorf("keyring set %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}
	return nil
}
