package application

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// Railway token types accepted by AddRailwayAccount.
const (
	RailwayTokenWorkspace = "workspace"
	RailwayTokenProject   = "project"
)

// AccountService implements the account commands on top of the credential
// cache. Every mutation is persisted before it returns.
type AccountService struct {
	cache    *CredentialCache
	registry *ClientRegistry
}

// NewAccountService creates an AccountService.
func NewAccountService(cache *CredentialCache, registry *ClientRegistry) *AccountService {
	return &AccountService{cache: cache, registry: registry}
}

// AddAccount dispatches to the provider's add flow. An empty Railway token
// type means a workspace token.
func (s *AccountService) AddAccount(ctx context.Context, provider model.Provider, token, tokenType string) (model.Account, error) {
	if !provider.Valid() {
		return model.Account{}, fmt.Errorf("provider %q: %w", provider, model.ErrUnsupportedProvider)
	}
	if provider == model.ProviderVercel {
		return s.AddVercelAccount(ctx, token)
	}

	if tokenType == "" {
		tokenType = RailwayTokenWorkspace
	}
	if tokenType != RailwayTokenWorkspace && tokenType != RailwayTokenProject {
		return model.Account{}, fmt.Errorf("railway token type %q: %w", tokenType, model.ErrInvalidInput)
	}
	return s.AddRailwayAccount(ctx, token, tokenType)
}

// AddVercelAccount validates token against Vercel, resolves its scope and
// stores the account. Team lookup failures degrade to user scope.
func (s *AccountService) AddVercelAccount(ctx context.Context, token string) (model.Account, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return model.Account{}, err
	}
	client, err := s.registry.Vercel()
	if err != nil {
		return model.Account{}, err
	}

	cred := model.Credential{Token: token, Scope: model.ScopeUser}
	profile, err := client.FetchProfile(ctx, cred)
	if err != nil {
		return model.Account{}, fmt.Errorf("validate vercel token: %w", err)
	}

	acct := model.Account{
		ID:        profile.ID,
		Username:  profile.Username,
		Email:     profile.Email,
		Name:      profile.Name,
		ScopeKind: model.ScopeUser,
		Provider:  model.ProviderVercel,
		Token:     token,
	}

	info, err := client.FetchTokenInfo(ctx, cred)
	switch {
	case err != nil:
		slog.Warn("token info lookup failed, assuming user scope", "account_id", acct.ID, "error", err)
	case info.TeamID != "":
		acct.ScopeKind = model.ScopeTeam
		team, err := client.FetchTeam(ctx, cred, info.TeamID)
		if err != nil {
			slog.Warn("team lookup failed", "account_id", acct.ID, "team_id", info.TeamID, "error", err)
		} else {
			acct.TeamName = team.Name
			acct.TeamSlug = team.Slug
		}
	}

	if err := s.store(ctx, acct); err != nil {
		return model.Account{}, err
	}
	slog.Info("account added", "account", acct)
	return acct.Redacted(), nil
}

// AddRailwayAccount validates a workspace or project token against Railway
// and stores the account under an ID derived from the token.
func (s *AccountService) AddRailwayAccount(ctx context.Context, token, tokenType string) (model.Account, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return model.Account{}, err
	}
	client, err := s.registry.Railway()
	if err != nil {
		return model.Account{}, err
	}

	isWorkspace := tokenType == RailwayTokenWorkspace
	scope := model.ScopeProject
	if isWorkspace {
		scope = model.ScopeWorkspace
	}
	cred := model.Credential{Token: token, Scope: scope}

	projects, err := client.ListProjects(ctx, cred, 1)
	if err != nil {
		return model.Account{}, fmt.Errorf("validate railway token: %w", err)
	}

	acct := model.Account{
		ScopeKind: scope,
		Provider:  model.ProviderRailway,
		Token:     token,
	}
	var scopeName string
	if isWorkspace {
		acct.ID = "railway_ws_" + shortTokenHash(token)
		acct.Email = "workspace@railway.app"
		workspaces, err := client.ListWorkspaces(ctx, cred)
		if err != nil {
			slog.Warn("workspace lookup failed", "account_id", acct.ID, "error", err)
		} else if len(workspaces) > 0 {
			scopeName = workspaces[0].Name
		}
		acct.Name = "Railway Workspace"
	} else {
		acct.ID = "railway_proj_" + shortTokenHash(token)
		acct.Email = "project@railway.app"
		if len(projects) > 0 {
			scopeName = projects[0].Name
		}
		acct.Name = "Railway Project"
	}
	if scopeName != "" {
		acct.Name = scopeName
		acct.TeamName = scopeName
	}
	acct.Username = acct.Name

	if err := s.store(ctx, acct); err != nil {
		return model.Account{}, err
	}
	slog.Info("account added", "account", acct)
	return acct.Redacted(), nil
}

// ListAccounts returns all accounts without tokens.
func (s *AccountService) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.cache.ListAccounts(), nil
}

// GetAccountToken returns the token of an account.
func (s *AccountService) GetAccountToken(ctx context.Context, id string) (string, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return "", err
	}
	token, ok := s.cache.GetToken(id)
	if !ok {
		return "", fmt.Errorf("account %s: %w", id, model.ErrNotFound)
	}
	return token, nil
}

// GetActive returns the active account ID, or "" when none is active.
func (s *AccountService) GetActive(ctx context.Context) (string, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return "", err
	}
	id, _ := s.cache.GetActive()
	return id, nil
}

// CurrentAccount returns the active account. The bool is false when no
// account is active or the pointer is dangling.
func (s *AccountService) CurrentAccount(ctx context.Context) (model.Account, bool, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return model.Account{}, false, err
	}
	id, ok := s.cache.GetActive()
	if !ok {
		return model.Account{}, false, nil
	}
	acct, ok := s.cache.GetAccount(id)
	return acct, ok, nil
}

// SetActive makes id the active account.
func (s *AccountService) SetActive(ctx context.Context, id string) error {
	if err := s.cache.Initialize(ctx); err != nil {
		return err
	}
	if _, ok := s.cache.GetAccount(id); !ok {
		return fmt.Errorf("account %s: %w", id, model.ErrNotFound)
	}
	s.cache.SetActive(id)
	return s.cache.Persist(ctx)
}

// RemoveAccount deletes an account and clears the active pointer when it
// referenced it. The provider client drops anything it kept for the token.
// Unknown IDs are not an error.
func (s *AccountService) RemoveAccount(ctx context.Context, id string) error {
	if err := s.cache.Initialize(ctx); err != nil {
		return err
	}
	acct, known := s.cache.GetAccount(id)
	token, _ := s.cache.GetToken(id)
	s.cache.RemoveAccount(id)
	if active, ok := s.cache.GetActive(); ok && active == id {
		s.cache.ClearActive()
	}
	if known {
		s.registry.Release(acct.Provider, token)
	}
	if err := s.cache.Persist(ctx); err != nil {
		return err
	}
	slog.Info("account removed", "account_id", id)
	return nil
}

// RenameAccount sets the display name of an account. Unknown IDs are ignored.
func (s *AccountService) RenameAccount(ctx context.Context, id, name string) error {
	if err := s.cache.Initialize(ctx); err != nil {
		return err
	}
	s.cache.Rename(id, name)
	return s.cache.Persist(ctx)
}

// SaveToken adds a Vercel account and makes it active.
func (s *AccountService) SaveToken(ctx context.Context, token string) (model.Account, error) {
	acct, err := s.AddVercelAccount(ctx, token)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.SetActive(ctx, acct.ID); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

// ActiveToken returns the token of the active account.
func (s *AccountService) ActiveToken(ctx context.Context) (string, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return "", err
	}
	acct, err := activeAccount(s.cache)
	if err != nil {
		return "", err
	}
	return acct.Token, nil
}

// ValidateStored checks the active account's token with its provider. A
// rejected token removes the account and yields (nil, nil). With no active
// account it also returns (nil, nil).
func (s *AccountService) ValidateStored(ctx context.Context) (*model.Profile, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return nil, err
	}
	acct, err := activeAccount(s.cache)
	if errors.Is(err, model.ErrUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile, err := s.verify(ctx, acct)
	if errors.Is(err, model.ErrProviderRejected) {
		slog.Warn("stored token rejected, removing account", "account", acct)
		if err := s.RemoveAccount(ctx, acct.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate stored token: %w", err)
	}
	return &profile, nil
}

// verify checks a stored token the same way it was checked when added.
// Railway tokens are verified by listing one project since project tokens
// cannot query the user.
func (s *AccountService) verify(ctx context.Context, acct model.Account) (model.Profile, error) {
	if acct.Provider == model.ProviderRailway {
		client, err := s.registry.Railway()
		if err != nil {
			return model.Profile{}, err
		}
		if _, err := client.ListProjects(ctx, acct.Credential(), 1); err != nil {
			return model.Profile{}, err
		}
		return model.Profile{ID: acct.ID, Username: acct.Username, Email: acct.Email, Name: acct.Name}, nil
	}

	client, err := s.registry.Get(acct.Provider)
	if err != nil {
		return model.Profile{}, err
	}
	return client.FetchProfile(ctx, acct.Credential())
}

// DeleteActive removes the active account, if any.
func (s *AccountService) DeleteActive(ctx context.Context) error {
	id, err := s.GetActive(ctx)
	if err != nil || id == "" {
		return err
	}
	return s.RemoveAccount(ctx, id)
}

func (s *AccountService) store(ctx context.Context, acct model.Account) error {
	s.cache.UpsertAccount(acct)
	if err := s.cache.Persist(ctx); err != nil {
		return fmt.Errorf("save account %s: %w", acct.ID, err)
	}
	return nil
}

// shortTokenHash returns the first 8 hex characters of the token's MD5.
func shortTokenHash(token string) string {
	sum := md5.Sum([]byte(token))
	return hex.EncodeToString(sum[:])[:8]
}
