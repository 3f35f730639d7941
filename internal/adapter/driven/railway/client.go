// Package railway implements the Railway provider client over the public
// GraphQL API.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/deploybar/internal/adapter/driven/providerhttp"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// DefaultEndpoint is the production Railway GraphQL endpoint.
const DefaultEndpoint = "https://backboard.railway.com/graphql/v2"

const (
	// enumerateProjects bounds how many projects an unfiltered listing visits.
	enumerateProjects = 20
	// perServiceLimit is fetched for every service and environment pair.
	perServiceLimit = 5
	// enumerateConcurrency bounds in-flight queries during enumeration.
	enumerateConcurrency = 4
)

// Compile-time interface satisfaction check.
var (
	_ driven.RailwayClient      = (*Client)(nil)
	_ driven.CredentialReleaser = (*Client)(nil)
)

// Client talks to the Railway GraphQL API.
type Client struct {
	pool     *providerhttp.ClientPool
	endpoint string
}

// NewClient creates a Client that posts to endpoint through base. Responses
// are not cached since GraphQL requests are POSTs.
func NewClient(endpoint string, base http.RoundTripper) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		pool:     providerhttp.NewStaticPool(&http.Client{Transport: base, Timeout: providerhttp.DefaultTimeout}),
		endpoint: endpoint,
	}
}

// NewClientWithHTTPClient creates a Client that sends every request through
// httpClient. This constructor is intended for testing against an httptest
// server.
func NewClientWithHTTPClient(httpClient *http.Client, endpoint string) *Client {
	return &Client{pool: providerhttp.NewStaticPool(httpClient), endpoint: endpoint}
}

// FetchProfile returns the user behind a workspace token.
func (c *Client) FetchProfile(ctx context.Context, cred model.Credential) (model.Profile, error) {
	var data meData
	if err := c.execute(ctx, cred, "me", meQuery, nil, &data); err != nil {
		return model.Profile{}, err
	}
	profile := model.Profile{ID: data.Me.ID, Email: data.Me.Email, Username: data.Me.Email}
	if data.Me.Name != nil {
		profile.Name = *data.Me.Name
		profile.Username = *data.Me.Name
	}
	return profile, nil
}

// ListWorkspaces returns the workspaces (teams) the token can see.
func (c *Client) ListWorkspaces(ctx context.Context, cred model.Credential) ([]model.Workspace, error) {
	var data teamsData
	if err := c.execute(ctx, cred, "teams", teamsQuery, nil, &data); err != nil {
		return nil, err
	}
	out := make([]model.Workspace, 0, len(data.Teams.Edges))
	for _, e := range data.Teams.Edges {
		out = append(out, model.Workspace{ID: e.Node.ID, Name: e.Node.Name})
	}
	return out, nil
}

// ListProjects returns up to limit projects with their services and
// environments.
func (c *Client) ListProjects(ctx context.Context, cred model.Credential, limit int) ([]model.Project, error) {
	var data projectsData
	if err := c.execute(ctx, cred, "projects", projectsQuery, map[string]any{"first": limit}, &data); err != nil {
		return nil, err
	}

	out := make([]model.Project, 0, len(data.Projects.Edges))
	for _, e := range data.Projects.Edges {
		p := model.Project{ID: e.Node.ID, Name: e.Node.Name}
		for _, s := range e.Node.Services.Edges {
			p.Services = append(p.Services, model.Service{ID: s.Node.ID, Name: s.Node.Name})
		}
		for _, env := range e.Node.Environments.Edges {
			p.Environments = append(p.Environments, model.Environment{ID: env.Node.ID, Name: env.Node.Name})
		}
		out = append(out, p)
	}
	return out, nil
}

// Forget drops the per-token client of a removed credential.
func (c *Client) Forget(token string) {
	c.pool.Forget(token)
}

// ListDeployments returns up to limit deployments, newest first. With an
// empty filter every service in every environment of the first projects is
// visited and the results merged.
func (c *Client) ListDeployments(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error) {
	var (
		deployments []model.RailwayDeployment
		err         error
	)
	if filter == (model.DeploymentFilter{}) {
		deployments, err = c.listAll(ctx, cred, limit)
	} else {
		deployments, err = c.listFiltered(ctx, cred, filter, limit)
	}
	if err != nil {
		return nil, err
	}

	sortNewestFirst(deployments)
	if len(deployments) > limit {
		deployments = deployments[:limit]
	}

	out := make([]model.NativeDeployment, len(deployments))
	for i, d := range deployments {
		out[i] = d
	}
	return out, nil
}

// GetDeployment returns a single deployment.
func (c *Client) GetDeployment(ctx context.Context, cred model.Credential, deploymentID string) (model.RailwayDeployment, error) {
	var data deploymentData
	if err := c.execute(ctx, cred, "deployment", deploymentQuery, map[string]any{"id": deploymentID}, &data); err != nil {
		return model.RailwayDeployment{}, err
	}
	return toModel(data.Deployment, model.DeploymentFilter{}, ""), nil
}

func (c *Client) listFiltered(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.RailwayDeployment, error) {
	input := map[string]any{}
	if filter.ProjectID != "" {
		input["projectId"] = filter.ProjectID
	}
	if filter.ServiceID != "" {
		input["serviceId"] = filter.ServiceID
	}
	if filter.EnvironmentID != "" {
		input["environmentId"] = filter.EnvironmentID
	}

	var data deploymentsData
	vars := map[string]any{"first": limit, "input": input}
	if err := c.execute(ctx, cred, "deployments", deploymentsQuery, vars, &data); err != nil {
		return nil, err
	}

	out := make([]model.RailwayDeployment, 0, len(data.Deployments.Edges))
	for _, e := range data.Deployments.Edges {
		out = append(out, toModel(e.Node, filter, ""))
	}
	return out, nil
}

// listAll enumerates projects × environments × services. A failing pair is
// logged and skipped; the listing fails only when the project query fails or
// every pair does. Results are merged in enumeration order, not completion
// order.
func (c *Client) listAll(ctx context.Context, cred model.Credential, limit int) ([]model.RailwayDeployment, error) {
	projects, err := c.ListProjects(ctx, cred, enumerateProjects)
	if err != nil {
		return nil, err
	}

	type pair struct {
		filter      model.DeploymentFilter
		serviceName string
	}
	var pairs []pair
	for _, project := range projects {
		for _, env := range project.Environments {
			for _, svc := range project.Services {
				pairs = append(pairs, pair{
					filter:      model.DeploymentFilter{ProjectID: project.ID, ServiceID: svc.ID, EnvironmentID: env.ID},
					serviceName: project.Name + " / " + svc.Name,
				})
			}
		}
	}

	slots := make([][]model.RailwayDeployment, len(pairs))
	errs := make([]error, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enumerateConcurrency)

	for i, p := range pairs {
		g.Go(func() error {
			deps, err := c.listFiltered(gctx, cred, p.filter, perServiceLimit)
			if err != nil {
				errs[i] = err
				return nil
			}
			for j := range deps {
				deps[j].ServiceName = p.serviceName
			}
			slots[i] = deps
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, providerhttp.TransportError("enumerate deployments", err)
	}

	var (
		all      []model.RailwayDeployment
		failed   int
		firstErr error
	)
	for i, p := range pairs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			slog.Warn("railway deployment listing failed",
				"project", p.filter.ProjectID,
				"service", p.filter.ServiceID,
				"environment", p.filter.EnvironmentID,
				"error", errs[i],
			)
			continue
		}
		all = append(all, slots[i]...)
	}
	if len(pairs) > 0 && failed == len(pairs) {
		return nil, fmt.Errorf("enumerate deployments: all %d services failed: %w", failed, firstErr)
	}

	slog.Debug("railway enumeration complete", "projects", len(projects), "pairs", len(pairs), "failed", failed, "deployments", len(all), "limit", limit)
	return all, nil
}

// execute posts one GraphQL operation. A non-empty errors array means the
// credential cannot perform the operation.
func (c *Client) execute(ctx context.Context, cred model.Credential, op, query string, vars map[string]any, out any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal %s query: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	setAuth(req, cred)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", providerhttp.UserAgent)

	resp, err := c.pool.Client(cred.Token).Do(req)
	if err != nil {
		return providerhttp.TransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerhttp.StatusError(op, resp)
	}

	var gql graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return providerhttp.TransportError("decode "+op, err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("railway %s: %w: %s", op, model.ErrProviderRejected, strings.Join(msgs, ", "))
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return fmt.Errorf("railway %s: %w: empty data", op, model.ErrProviderUnreachable)
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return providerhttp.TransportError("decode "+op, err)
	}
	return nil
}

// setAuth applies the header the token type requires. Project tokens use
// Project-Access-Token; everything else is a bearer token.
func setAuth(req *http.Request, cred model.Credential) {
	if cred.Scope == model.ScopeProject {
		req.Header.Set("Project-Access-Token", cred.Token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
}

func toModel(n deploymentNode, filter model.DeploymentFilter, serviceName string) model.RailwayDeployment {
	return model.RailwayDeployment{
		ID:            n.ID,
		StaticURL:     n.StaticURL,
		Status:        n.Status,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		CommitMessage: n.Meta.CommitMessage,
		Branch:        n.Meta.Branch,
		CommitHash:    n.Meta.CommitHash,
		ProjectID:     filter.ProjectID,
		ServiceID:     filter.ServiceID,
		ServiceName:   serviceName,
		EnvironmentID: filter.EnvironmentID,
	}
}

// sortNewestFirst orders by createdAt. Unparseable timestamps sort last.
func sortNewestFirst(deps []model.RailwayDeployment) {
	sort.SliceStable(deps, func(i, j int) bool {
		ti, tj := createdAt(deps[i]), createdAt(deps[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return deps[i].ID < deps[j].ID
	})
}

func createdAt(d model.RailwayDeployment) time.Time {
	t, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
