// Package vercel implements the Vercel provider client over the REST API.
package vercel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ericfisherdev/deploybar/internal/adapter/driven/providerhttp"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// DefaultBaseURL is the production Vercel API.
const DefaultBaseURL = "https://api.vercel.com"

const projectsPageSize = 50

// Compile-time interface satisfaction checks.
var (
	_ driven.VercelClient       = (*Client)(nil)
	_ driven.LogSource          = (*Client)(nil)
	_ driven.CredentialReleaser = (*Client)(nil)
)

// Client talks to the Vercel REST API. Each token gets its own cached HTTP
// client; all of them share one rate-limited transport.
type Client struct {
	pool    *providerhttp.ClientPool
	baseURL string
}

// NewClient creates a Client with the following transport stack:
//  1. httpcache (per-token ETag caching)
//  2. base, normally a providerhttp rate-limited transport
func NewClient(baseURL string, base http.RoundTripper) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{pool: providerhttp.NewClientPool(base), baseURL: baseURL}
}

// NewClientWithHTTPClient creates a Client that sends every request through
// httpClient. This constructor is intended for testing against an httptest
// server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{pool: providerhttp.NewStaticPool(httpClient), baseURL: baseURL}
}

// Forget drops the per-token client of a removed credential.
func (c *Client) Forget(token string) {
	c.pool.Forget(token)
}

// FetchProfile returns the user that owns the token.
func (c *Client) FetchProfile(ctx context.Context, cred model.Credential) (model.Profile, error) {
	var resp userResponse
	if err := c.getJSON(ctx, cred, "/v2/user", nil, &resp); err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		ID:       resp.User.ID,
		Username: resp.User.Username,
		Email:    resp.User.Email,
		Name:     resp.User.Name,
	}, nil
}

// FetchTokenInfo describes the token in use.
func (c *Client) FetchTokenInfo(ctx context.Context, cred model.Credential) (model.TokenInfo, error) {
	var resp tokenResponse
	if err := c.getJSON(ctx, cred, "/v5/user/tokens/current", nil, &resp); err != nil {
		return model.TokenInfo{}, err
	}
	return model.TokenInfo{
		ID:     resp.Token.ID,
		Name:   resp.Token.Name,
		Type:   resp.Token.Type,
		TeamID: resp.Token.TeamID,
	}, nil
}

// FetchTeam returns a team by ID.
func (c *Client) FetchTeam(ctx context.Context, cred model.Credential, teamID string) (model.Team, error) {
	var resp teamResponse
	if err := c.getJSON(ctx, cred, "/v2/teams/"+url.PathEscape(teamID), nil, &resp); err != nil {
		return model.Team{}, err
	}
	return model.Team{ID: resp.ID, Name: resp.Name, Slug: resp.Slug}, nil
}

// ListProjects returns the first page of projects.
func (c *Client) ListProjects(ctx context.Context, cred model.Credential) ([]model.Project, error) {
	var resp projectsResponse
	query := url.Values{"limit": {strconv.Itoa(projectsPageSize)}}
	if err := c.getJSON(ctx, cred, "/v9/projects", query, &resp); err != nil {
		return nil, err
	}

	projects := make([]model.Project, 0, len(resp.Projects))
	for _, p := range resp.Projects {
		projects = append(projects, model.Project{
			ID:        p.ID,
			Name:      p.Name,
			Framework: p.Framework,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return projects, nil
}

// ListDeployments returns up to limit recent deployments, newest first.
// Only filter.ProjectID applies to Vercel.
func (c *Client) ListDeployments(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if filter.ProjectID != "" {
		query.Set("projectId", filter.ProjectID)
	}

	var resp deploymentsResponse
	if err := c.getJSON(ctx, cred, "/v6/deployments", query, &resp); err != nil {
		return nil, err
	}

	out := make([]model.NativeDeployment, 0, len(resp.Deployments))
	for _, d := range resp.Deployments {
		out = append(out, d.toModel())
	}
	return out, nil
}

// GetDeployment returns a single deployment.
func (c *Client) GetDeployment(ctx context.Context, cred model.Credential, deploymentID string) (model.VercelDeployment, error) {
	var resp deploymentJSON
	if err := c.getJSON(ctx, cred, "/v13/deployments/"+url.PathEscape(deploymentID), nil, &resp); err != nil {
		return model.VercelDeployment{}, err
	}
	return resp.toModel(), nil
}

func (c *Client) newRequest(ctx context.Context, cred model.Credential, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", providerhttp.UserAgent)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, cred model.Credential, path string, query url.Values, out any) error {
	op := "GET " + path
	req, err := c.newRequest(ctx, cred, path, query)
	if err != nil {
		return err
	}

	resp, err := c.pool.Client(cred.Token).Do(req)
	if err != nil {
		return providerhttp.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-From-Cache") == "1" {
		slog.Debug("vercel response served from cache", "path", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerhttp.StatusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providerhttp.TransportError("decode "+op, err)
	}
	return nil
}
