package model

// NativeDeployment is a deployment record in a provider's own shape. The set
// of implementations is closed: VercelDeployment and RailwayDeployment.
type NativeDeployment interface {
	Provider() Provider
	sealed()
}

// VercelDeployment is a deployment as reported by the Vercel REST API.
// State falls back to ReadyState when empty. CreatedAt is epoch milliseconds.
type VercelDeployment struct {
	UID            string
	Name           string
	URL            string
	State          string
	ReadyState     string
	CreatedAt      *int64
	BuildingAt     *int64
	ReadyAt        *int64
	ProjectID      string
	CommitMessage  string
	Branch         string
	GitAuthorLogin string
	Creator        string
}

// Provider implements NativeDeployment.
func (VercelDeployment) Provider() Provider { return ProviderVercel }

func (VercelDeployment) sealed() {}

// NativeState returns the effective Vercel state string.
func (d VercelDeployment) NativeState() string {
	if d.State != "" {
		return d.State
	}
	return d.ReadyState
}

// RailwayDeployment is a deployment as reported by the Railway GraphQL API.
// CreatedAt and UpdatedAt are RFC 3339 date-time text.
type RailwayDeployment struct {
	ID            string
	StaticURL     string
	Status        string
	CreatedAt     string
	UpdatedAt     string
	CommitMessage string
	Branch        string
	CommitHash    string
	ProjectID     string
	ServiceID     string
	ServiceName   string
	EnvironmentID string
}

// Provider implements NativeDeployment.
func (RailwayDeployment) Provider() Provider { return ProviderRailway }

func (RailwayDeployment) sealed() {}
