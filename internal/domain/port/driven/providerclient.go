package driven

import (
	"context"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// DeploymentClient is the capability every provider client exposes. Errors
// wrap model.ErrProviderRejected or model.ErrProviderUnreachable.
type DeploymentClient interface {
	// FetchProfile validates the credential and returns the identity behind it.
	FetchProfile(ctx context.Context, cred model.Credential) (model.Profile, error)

	// ListDeployments returns up to limit of the most recent deployments
	// visible to the credential, newest first.
	ListDeployments(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error)
}

// VercelClient adds the Vercel-specific lookups used when adding an account
// and when browsing a single account.
type VercelClient interface {
	DeploymentClient

	FetchTokenInfo(ctx context.Context, cred model.Credential) (model.TokenInfo, error)
	FetchTeam(ctx context.Context, cred model.Credential, teamID string) (model.Team, error)
	ListProjects(ctx context.Context, cred model.Credential) ([]model.Project, error)
	GetDeployment(ctx context.Context, cred model.Credential, deploymentID string) (model.VercelDeployment, error)
}

// RailwayClient adds the Railway-specific lookups used when adding an account.
type RailwayClient interface {
	DeploymentClient

	ListProjects(ctx context.Context, cred model.Credential, limit int) ([]model.Project, error)
	ListWorkspaces(ctx context.Context, cred model.Credential) ([]model.Workspace, error)
	GetDeployment(ctx context.Context, cred model.Credential, deploymentID string) (model.RailwayDeployment, error)
}

// LogSource streams build log lines for a deployment.
type LogSource interface {
	// StreamLogs calls fn for every log line. When follow is true the call
	// blocks until the provider closes the stream or ctx is canceled.
	StreamLogs(ctx context.Context, cred model.Credential, deploymentID string, follow bool, fn func(model.LogLine)) error
}

// CredentialReleaser is implemented by clients that keep per-token state,
// such as response caches. Forget drops it once the token is removed.
type CredentialReleaser interface {
	Forget(token string)
}
