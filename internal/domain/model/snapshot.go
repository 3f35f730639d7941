package model

import "fmt"

// SnapshotVersion is the snapshot schema version written by this build.
const SnapshotVersion = 1

// Snapshot is the durable form of the credential cache. It is the only
// artifact written to the secure store and is always rewritten in full.
//
// Field defaults applied by Normalize:
//   - Version: absent (0) means 1, the format that predates the field.
//   - Accounts: absent means no accounts.
//   - Accounts[].Provider: absent means DefaultProvider.
//   - Accounts[].ScopeType: absent means ScopeUser.
//   - ActiveAccountID: absent means no active account.
type Snapshot struct {
	Version         int             `json:"version"`
	Accounts        []StoredAccount `json:"accounts"`
	ActiveAccountID *string         `json:"activeAccountId,omitempty"`
}

// StoredAccount is one account as persisted, token included.
type StoredAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	ScopeType ScopeKind `json:"scopeType"`
	TeamName  *string   `json:"teamName,omitempty"`
	TeamSlug  *string   `json:"teamSlug,omitempty"`
	Token     string    `json:"token"`
	Provider  Provider  `json:"provider,omitempty"`
}

// Normalize applies the documented defaults in place. It fails for snapshots
// written by a newer schema that this build cannot safely rewrite.
func (s *Snapshot) Normalize() error {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version > SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	if s.Accounts == nil {
		s.Accounts = []StoredAccount{}
	}
	for i := range s.Accounts {
		if s.Accounts[i].Provider == "" {
			s.Accounts[i].Provider = DefaultProvider
		}
		if s.Accounts[i].ScopeType == "" {
			s.Accounts[i].ScopeType = ScopeUser
		}
	}
	if s.ActiveAccountID != nil && *s.ActiveAccountID == "" {
		s.ActiveAccountID = nil
	}
	return nil
}

// Account converts the stored form into an Account with its token.
func (sa StoredAccount) Account() Account {
	return Account{
		ID:        sa.ID,
		Username:  sa.Username,
		Email:     sa.Email,
		Name:      deref(sa.Name),
		ScopeKind: sa.ScopeType,
		TeamName:  deref(sa.TeamName),
		TeamSlug:  deref(sa.TeamSlug),
		Provider:  sa.Provider,
		Token:     sa.Token,
	}
}

// NewStoredAccount converts an Account (with token) into its stored form.
func NewStoredAccount(a Account) StoredAccount {
	return StoredAccount{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Name:      optional(a.Name),
		ScopeType: a.ScopeKind,
		TeamName:  optional(a.TeamName),
		TeamSlug:  optional(a.TeamSlug),
		Token:     a.Token,
		Provider:  a.Provider,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
