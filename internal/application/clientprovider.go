package application

import (
	"fmt"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// ClientRegistry maps each provider to its deployment client.
// The map is fixed at construction, so lookups need no locking.
type ClientRegistry struct {
	clients map[model.Provider]driven.DeploymentClient
}

// NewClientRegistry creates a registry holding the given clients. Either may
// be nil, in which case lookups for that provider fail with
// model.ErrUnsupportedProvider.
func NewClientRegistry(vercel driven.VercelClient, railway driven.RailwayClient) *ClientRegistry {
	r := &ClientRegistry{clients: make(map[model.Provider]driven.DeploymentClient)}
	if vercel != nil {
		r.clients[model.ProviderVercel] = vercel
	}
	if railway != nil {
		r.clients[model.ProviderRailway] = railway
	}
	return r
}

// Get returns the client for provider p.
func (r *ClientRegistry) Get(p model.Provider) (driven.DeploymentClient, error) {
	client, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("no client for %q: %w", p, model.ErrUnsupportedProvider)
	}
	return client, nil
}

// Vercel returns the Vercel client with its provider-specific lookups.
func (r *ClientRegistry) Vercel() (driven.VercelClient, error) {
	client, err := r.Get(model.ProviderVercel)
	if err != nil {
		return nil, err
	}
	vc, ok := client.(driven.VercelClient)
	if !ok {
		return nil, fmt.Errorf("vercel client lacks account lookups: %w", model.ErrUnsupportedProvider)
	}
	return vc, nil
}

// Railway returns the Railway client with its provider-specific lookups.
func (r *ClientRegistry) Railway() (driven.RailwayClient, error) {
	client, err := r.Get(model.ProviderRailway)
	if err != nil {
		return nil, err
	}
	rc, ok := client.(driven.RailwayClient)
	if !ok {
		return nil, fmt.Errorf("railway client lacks account lookups: %w", model.ErrUnsupportedProvider)
	}
	return rc, nil
}

// LogSource returns the build log source for provider p. Only clients that
// implement driven.LogSource can stream logs.
func (r *ClientRegistry) LogSource(p model.Provider) (driven.LogSource, error) {
	client, err := r.Get(p)
	if err != nil {
		return nil, err
	}
	src, ok := client.(driven.LogSource)
	if !ok {
		return nil, fmt.Errorf("build logs for %q: %w", p, model.ErrUnsupportedProvider)
	}
	return src, nil
}

// Release drops any per-token state the provider's client keeps for token.
// Clients without such state are left alone.
func (r *ClientRegistry) Release(p model.Provider, token string) {
	if token == "" {
		return
	}
	client, err := r.Get(p)
	if err != nil {
		return
	}
	if releaser, ok := client.(driven.CredentialReleaser); ok {
		releaser.Forget(token)
	}
}
