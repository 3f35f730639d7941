package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Fixed location of the snapshot in the secure store.
const (
	SnapshotService = "deploybar"
	SnapshotKey     = "app-data"
)

// CredentialCache is the in-memory view of all accounts and their tokens. It
// is hydrated once from the secure store and is the only writer back to it.
//
// All accessors are in-memory. The mutex is never held across a store call:
// Initialize reads outside the lock and Persist copies the state out first.
type CredentialCache struct {
	store driven.SecureBlobStore

	mu          sync.RWMutex
	tokens      map[string]string
	accounts    map[string]model.Account
	activeID    string
	initialized bool

	flight singleflight.Group
}

// NewCredentialCache creates an empty, uninitialized cache backed by store.
func NewCredentialCache(store driven.SecureBlobStore) *CredentialCache {
	return &CredentialCache{
		store:    store,
		tokens:   make(map[string]string),
		accounts: make(map[string]model.Account),
	}
}

// Initialize hydrates the cache from the secure store on first use. Concurrent
// and later calls share the first successful load; the store is read at most
// once. An absent snapshot is an empty cache. A failed load leaves the cache
// uninitialized and is reported to every caller waiting on it.
func (c *CredentialCache) Initialize(ctx context.Context) error {
	if c.Initialized() {
		return nil
	}

	_, err, _ := c.flight.Do("initialize", func() (any, error) {
		// A flight that started after a previous one finished must not read again.
		if c.Initialized() {
			return nil, nil
		}
		snapshot, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.hydrate(snapshot)
		slog.Info("credential cache initialized", "accounts", len(snapshot.Accounts))
		return nil, nil
	})
	return err
}

// Initialized reports whether the cache has been hydrated.
func (c *CredentialCache) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

func (c *CredentialCache) load(ctx context.Context) (model.Snapshot, error) {
	data, err := c.store.Get(ctx, SnapshotService, SnapshotKey)
	if errors.Is(err, driven.ErrBlobNotFound) {
		return model.Snapshot{Version: model.SnapshotVersion, Accounts: []model.StoredAccount{}}, nil
	}
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
		}
		return model.Snapshot{}, fmt.Errorf("load snapshot: %w: %w", model.ErrStoreUnavailable, err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w: %w", model.ErrStoreCorrupt, err)
	}
	if err := snapshot.Normalize(); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w: %w", model.ErrStoreCorrupt, err)
	}
	return snapshot, nil
}

func (c *CredentialCache) hydrate(snapshot model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stored := range snapshot.Accounts {
		if stored.ID == "" {
			continue
		}
		acct := stored.Account()
		c.tokens[acct.ID] = acct.Token
		acct.Token = ""
		c.accounts[acct.ID] = acct
	}
	if snapshot.ActiveAccountID != nil {
		c.activeID = *snapshot.ActiveAccountID
	}
	c.initialized = true
}

// UpsertAccount inserts or replaces the account with the same ID, taking the
// token from acct.Token. It does not persist.
func (c *CredentialCache) UpsertAccount(acct model.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[acct.ID] = acct.Token
	c.accounts[acct.ID] = acct.Redacted()
}

// GetToken returns the token for the account. It is the only accessor that
// exposes tokens.
func (c *CredentialCache) GetToken(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[id]
	return token, ok
}

// GetAccount returns the account without its token.
func (c *CredentialCache) GetAccount(id string) (model.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acct, ok := c.accounts[id]
	return acct, ok
}

// ListAccounts returns all accounts without tokens, ordered by ID.
func (c *CredentialCache) ListAccounts() []model.Account {
	c.mu.RLock()
	accounts := make([]model.Account, 0, len(c.accounts))
	for _, acct := range c.accounts {
		accounts = append(accounts, acct)
	}
	c.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts
}

// credentialedAccounts returns all accounts with tokens attached, ordered by
// ID. It is used by the background services right before network I/O.
func (c *CredentialCache) credentialedAccounts() []model.Account {
	c.mu.RLock()
	accounts := make([]model.Account, 0, len(c.accounts))
	for id, acct := range c.accounts {
		acct.Token = c.tokens[id]
		accounts = append(accounts, acct)
	}
	c.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts
}

// RemoveAccount deletes the account and its token. Unknown IDs are ignored.
// The active pointer is left untouched; clearing it is the caller's decision.
func (c *CredentialCache) RemoveAccount(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, id)
	delete(c.accounts, id)
}

// SetActive points the active account at id.
func (c *CredentialCache) SetActive(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = id
}

// ClearActive removes the active pointer.
func (c *CredentialCache) ClearActive() {
	c.SetActive("")
}

// GetActive returns the active account ID, if any.
func (c *CredentialCache) GetActive() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID, c.activeID != ""
}

// Rename sets the display name of an existing account. Unknown IDs are ignored.
func (c *CredentialCache) Rename(id, newName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct, ok := c.accounts[id]
	if !ok {
		return
	}
	acct.Name = newName
	acct.Username = newName
	c.accounts[id] = acct
}

// Snapshot returns the full durable form of the current state.
func (c *CredentialCache) Snapshot() model.Snapshot {
	c.mu.RLock()
	snapshot := model.Snapshot{
		Version:  model.SnapshotVersion,
		Accounts: make([]model.StoredAccount, 0, len(c.accounts)),
	}
	for id, acct := range c.accounts {
		acct.Token = c.tokens[id]
		snapshot.Accounts = append(snapshot.Accounts, model.NewStoredAccount(acct))
	}
	activeID := c.activeID
	c.mu.RUnlock()

	sort.Slice(snapshot.Accounts, func(i, j int) bool {
		return snapshot.Accounts[i].ID < snapshot.Accounts[j].ID
	})
	if activeID != "" {
		snapshot.ActiveAccountID = &activeID
	}
	return snapshot
}

// Persist writes the full current state to the secure store as one blob.
// Callers invoke it after each mutation sequence that must survive a restart.
func (c *CredentialCache) Persist(ctx context.Context) error {
	if !c.Initialized() {
		return model.ErrCacheNotInitialized
	}

	snapshot := c.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := c.store.Set(ctx, SnapshotService, SnapshotKey, data); err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return fmt.Errorf("persist snapshot: %w", err)
		}
		return fmt.Errorf("persist snapshot: %w: %w", model.ErrStoreUnavailable, err)
	}

	slog.Debug("credential cache persisted", "accounts", len(snapshot.Accounts))
	return nil
}
