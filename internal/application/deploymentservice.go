package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Defaults used when DeploymentServiceConfig fields are zero.
const (
	DefaultListLimit       = 8
	DefaultPerAccountLimit = 10
	DefaultFetchTimeout    = 15 * time.Second
	defaultFanOut          = 8

	// projectListLimit bounds Railway project listings.
	projectListLimit = 50
)

// DeploymentServiceConfig tunes the aggregated listing.
type DeploymentServiceConfig struct {
	// PerAccountLimit is how many deployments are fetched from each account.
	PerAccountLimit int
	// FetchTimeout bounds each account's fetch.
	FetchTimeout time.Duration
	// DefaultLimit is the result size used when the caller passes limit <= 0.
	DefaultLimit int
	// Concurrency bounds how many accounts are fetched at once.
	Concurrency int
}

func (c DeploymentServiceConfig) withDefaults() DeploymentServiceConfig {
	if c.PerAccountLimit <= 0 {
		c.PerAccountLimit = DefaultPerAccountLimit
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultListLimit
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultFanOut
	}
	return c
}

// AccountErrorEvent is the payload of a deployments-error event.
type AccountErrorEvent struct {
	AccountID string         `json:"accountId"`
	Provider  model.Provider `json:"provider"`
	Message   string         `json:"message"`
}

// DeploymentService lists deployments across accounts.
type DeploymentService struct {
	cache    *CredentialCache
	registry *ClientRegistry
	emitter  driven.Emitter
	metrics  driven.Metrics
	cfg      DeploymentServiceConfig
}

// NewDeploymentService creates a DeploymentService. A nil emitter or metrics
// is replaced with a no-op.
func NewDeploymentService(
	cache *CredentialCache,
	registry *ClientRegistry,
	emitter driven.Emitter,
	metrics driven.Metrics,
	cfg DeploymentServiceConfig,
) *DeploymentService {
	if emitter == nil {
		emitter = driven.NopEmitter{}
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &DeploymentService{
		cache:    cache,
		registry: registry,
		emitter:  emitter,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// ListAll returns the newest deployments across every account, merged and
// sorted newest first, truncated to limit. A failing account contributes
// nothing; the call itself only fails when the secure store does.
func (s *DeploymentService) ListAll(ctx context.Context, limit int) ([]model.UnifiedDeployment, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	accounts := s.cache.credentialedAccounts()
	start := time.Now()
	perAccount := make([][]model.UnifiedDeployment, len(accounts))
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, acct := range accounts {
		g.Go(func() error {
			natives, err := fetchNative(ctx, s.registry, acct, model.DeploymentFilter{}, s.cfg.PerAccountLimit, s.cfg.FetchTimeout)
			if err != nil {
				failed.Add(1)
				s.reportAccountError(acct, "list_deployments", err)
				return nil
			}
			unified := make([]model.UnifiedDeployment, 0, len(natives))
			for _, n := range natives {
				unified = append(unified, Normalize(n, acct.Context()))
			}
			perAccount[i] = unified
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]model.UnifiedDeployment, 0, len(accounts)*s.cfg.PerAccountLimit)
	for _, deps := range perAccount {
		merged = append(merged, deps...)
	}
	sortNewestFirst(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	s.metrics.ObserveAggregation(len(accounts), int(failed.Load()), time.Since(start))
	slog.Debug("aggregated deployments",
		"accounts", len(accounts),
		"failed", failed.Load(),
		"returned", len(merged),
	)
	return merged, nil
}

// ListForActive returns deployments of the active account only. Provider
// errors are returned to the caller.
func (s *DeploymentService) ListForActive(ctx context.Context, filter model.DeploymentFilter, limit int) ([]model.UnifiedDeployment, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.PerAccountLimit
	}

	acct, err := activeAccount(s.cache)
	if err != nil {
		return nil, err
	}

	natives, err := fetchNative(ctx, s.registry, acct, filter, limit, s.cfg.FetchTimeout)
	if err != nil {
		s.metrics.ObserveProviderError(acct.Provider, "list_deployments")
		return nil, err
	}

	unified := make([]model.UnifiedDeployment, 0, len(natives))
	for _, n := range natives {
		unified = append(unified, Normalize(n, acct.Context()))
	}
	sortNewestFirst(unified)
	return unified, nil
}

// ListProjects returns the projects visible to an account, picked by ID or
// the active one when accountID is empty.
func (s *DeploymentService) ListProjects(ctx context.Context, accountID string) ([]model.Project, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return nil, err
	}
	acct, err := resolveAccount(s.cache, accountID)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var projects []model.Project
	switch acct.Provider {
	case model.ProviderRailway:
		client, cerr := s.registry.Railway()
		if cerr != nil {
			return nil, cerr
		}
		projects, err = client.ListProjects(fetchCtx, acct.Credential(), projectListLimit)
	case model.ProviderVercel:
		client, cerr := s.registry.Vercel()
		if cerr != nil {
			return nil, cerr
		}
		projects, err = client.ListProjects(fetchCtx, acct.Credential())
	default:
		return nil, fmt.Errorf("list projects for %q: %w", acct.Provider, model.ErrUnsupportedProvider)
	}
	if err != nil {
		s.metrics.ObserveProviderError(acct.Provider, "list_projects")
		return nil, fmt.Errorf("list projects for %s: %w", acct.ID, err)
	}
	return projects, nil
}

// Get returns one deployment of an account, picked by ID or the active one
// when accountID is empty.
func (s *DeploymentService) Get(ctx context.Context, deploymentID, accountID string) (model.UnifiedDeployment, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return model.UnifiedDeployment{}, err
	}
	acct, err := resolveAccount(s.cache, accountID)
	if err != nil {
		return model.UnifiedDeployment{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var native model.NativeDeployment
	switch acct.Provider {
	case model.ProviderRailway:
		client, cerr := s.registry.Railway()
		if cerr != nil {
			return model.UnifiedDeployment{}, cerr
		}
		native, err = client.GetDeployment(fetchCtx, acct.Credential(), deploymentID)
	case model.ProviderVercel:
		client, cerr := s.registry.Vercel()
		if cerr != nil {
			return model.UnifiedDeployment{}, cerr
		}
		native, err = client.GetDeployment(fetchCtx, acct.Credential(), deploymentID)
	default:
		return model.UnifiedDeployment{}, fmt.Errorf("get deployment for %q: %w", acct.Provider, model.ErrUnsupportedProvider)
	}
	if err != nil {
		s.metrics.ObserveProviderError(acct.Provider, "get_deployment")
		return model.UnifiedDeployment{}, fmt.Errorf("get deployment %s: %w", deploymentID, err)
	}
	return Normalize(native, acct.Context()), nil
}

func (s *DeploymentService) reportAccountError(acct model.Account, operation string, err error) {
	slog.Error("account fetch failed", "account", acct, "operation", operation, "error", err)
	s.metrics.ObserveProviderError(acct.Provider, operation)
	s.emitter.Emit(driven.EventDeploymentsError, AccountErrorEvent{
		AccountID: acct.ID,
		Provider:  acct.Provider,
		Message:   err.Error(),
	})
}

// fetchNative lists an account's deployments under its own timeout.
func fetchNative(
	ctx context.Context,
	registry *ClientRegistry,
	acct model.Account,
	filter model.DeploymentFilter,
	limit int,
	timeout time.Duration,
) ([]model.NativeDeployment, error) {
	if acct.Token == "" {
		return nil, fmt.Errorf("account %s has no token: %w", acct.ID, model.ErrUnauthenticated)
	}
	client, err := registry.Get(acct.Provider)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	natives, err := client.ListDeployments(fetchCtx, acct.Credential(), filter, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrProviderUnreachable) {
			return nil, fmt.Errorf("list deployments for %s: %w: %w", acct.ID, model.ErrProviderUnreachable, err)
		}
		return nil, fmt.Errorf("list deployments for %s: %w", acct.ID, err)
	}
	return natives, nil
}

// activeAccount returns the active account with its token attached.
func activeAccount(cache *CredentialCache) (model.Account, error) {
	id, ok := cache.GetActive()
	if !ok {
		return model.Account{}, model.ErrUnauthenticated
	}
	acct, ok := cache.GetAccount(id)
	if !ok {
		return model.Account{}, fmt.Errorf("active account %s: %w", id, model.ErrUnauthenticated)
	}
	token, ok := cache.GetToken(id)
	if !ok || token == "" {
		return model.Account{}, fmt.Errorf("active account %s has no token: %w", id, model.ErrUnauthenticated)
	}
	acct.Token = token
	return acct, nil
}

// resolveAccount picks the account by explicit ID, falling back to the active
// one. The token is attached.
func resolveAccount(cache *CredentialCache, accountID string) (model.Account, error) {
	if accountID == "" {
		return activeAccount(cache)
	}
	acct, ok := cache.GetAccount(accountID)
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, model.ErrNotFound)
	}
	token, ok := cache.GetToken(accountID)
	if !ok || token == "" {
		return model.Account{}, fmt.Errorf("account %s has no token: %w", accountID, model.ErrUnauthenticated)
	}
	acct.Token = token
	return acct, nil
}

func sortNewestFirst(deps []model.UnifiedDeployment) {
	sort.SliceStable(deps, func(i, j int) bool {
		return deps[i].SortKey() > deps[j].SortKey()
	})
}
