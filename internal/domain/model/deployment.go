package model

// DeploymentStatus is the provider-agnostic deployment status.
type DeploymentStatus string

const (
	StatusInitializing DeploymentStatus = "INITIALIZING"
	StatusQueued       DeploymentStatus = "QUEUED"
	StatusBuilding     DeploymentStatus = "BUILDING"
	StatusReady        DeploymentStatus = "READY"
	StatusError        DeploymentStatus = "ERROR"
	StatusCanceled     DeploymentStatus = "CANCELED"
	StatusUnknown      DeploymentStatus = "UNKNOWN"
)

// IsTerminal reports whether the status can no longer change.
func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError || s == StatusCanceled
}

// UnifiedDeployment is a deployment from any provider mapped into one schema.
// It is derived on every request and never stored.
type UnifiedDeployment struct {
	ID              string
	AccountID       string
	Provider        Provider
	Name            string
	URL             string
	Status          DeploymentStatus
	CreatedAtMillis *int64
	CommitMessage   string
	Branch          string
	ProjectID       string
	ServiceID       string
	GitAuthorLogin  string
	TeamSlug        string
}

// SortKey returns the creation time used for ordering; absent timestamps sort
// as the oldest possible value.
func (d UnifiedDeployment) SortKey() int64 {
	if d.CreatedAtMillis == nil {
		return 0
	}
	return *d.CreatedAtMillis
}

// DeploymentFilter narrows a provider deployment listing. Empty fields are
// ignored. EnvironmentID is only meaningful for Railway.
type DeploymentFilter struct {
	ProjectID     string
	ServiceID     string
	EnvironmentID string
}

// LogLine is one line of build output.
type LogLine struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	IsError   bool   `json:"isError"`
}

// TrayState is the indicator state shown by the UI shell.
type TrayState struct {
	Building bool   `json:"building"`
	Title    string `json:"title"`
	Tooltip  string `json:"tooltip"`
	Project  string `json:"project,omitempty"`
}
