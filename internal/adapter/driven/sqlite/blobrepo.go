package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecureBlobStore = (*BlobRepo)(nil)

// BlobRepo is the SQLite implementation of driven.SecureBlobStore for hosts
// without an OS keyring. Blobs are sealed with AES-256-GCM before write; the
// row's service/key pair is bound as additional data so a sealed value cannot
// be moved to another row.
type BlobRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when no secret is configured.
}

// NewBlobRepo creates a BlobRepo. key must be 32 bytes, or nil, in which case
// every operation fails with ErrEncryptionKeyNotSet.
func NewBlobRepo(db *DB, key []byte) *BlobRepo {
	return &BlobRepo{db: db, key: key}
}

// Get returns the blob stored under service/key, or driven.ErrBlobNotFound.
func (r *BlobRepo) Get(ctx context.Context, service, key string) ([]byte, error) {
	if r.key == nil {
		return nil, fmt.Errorf("get blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, ErrEncryptionKeyNotSet)
	}

	const query = `SELECT value FROM secure_blobs WHERE service = ? AND key = ?`
	var sealed string
	err := r.db.Reader.QueryRowContext(ctx, query, service, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}

	plaintext, err := r.open(sealed, aad(service, key))
	if err != nil {
		return nil, fmt.Errorf("decrypt blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}
	return plaintext, nil
}

// Set stores or replaces the blob under service/key.
func (r *BlobRepo) Set(ctx context.Context, service, key string, data []byte) error {
	if r.key == nil {
		return fmt.Errorf("set blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, ErrEncryptionKeyNotSet)
	}

	sealed, err := r.seal(data, aad(service, key))
	if err != nil {
		return fmt.Errorf("encrypt blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}

	const query = `INSERT INTO secure_blobs (service, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (service, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key, sealed); err != nil {
		return fmt.Errorf("set blob %s/%s: %w: %w", service, key, model.ErrStoreUnavailable, err)
	}
	return nil
}

func aad(service, key string) []byte {
	return []byte(service + "\x00" + key)
}

func (r *BlobRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// seal returns base64(nonce || ciphertext || tag).
func (r *BlobRepo) seal(plaintext, additional []byte) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, additional)), nil
}

func (r *BlobRepo) open(encoded string, additional []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, additional)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}
