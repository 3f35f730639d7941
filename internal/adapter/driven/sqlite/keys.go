package sqlite

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// blobKeyInfo binds derived keys to this use so the same secret can never
// yield the same key elsewhere.
const blobKeyInfo = "deploybar secure blob v1"

// ErrEncryptionKeyNotSet is returned when the store is used without a secret.
var ErrEncryptionKeyNotSet = errors.New("sqlite store: encryption secret not set")

// DeriveKey turns an operator-supplied secret of any length into a 32-byte
// AES-256 key. An empty secret returns nil, which disables the store.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(blobKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive blob key: %w", err)
	}
	return key, nil
}
