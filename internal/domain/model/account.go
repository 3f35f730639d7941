package model

import "log/slog"

// Provider identifies the deployment platform an account belongs to.
type Provider string

const (
	ProviderVercel  Provider = "vercel"
	ProviderRailway Provider = "railway"
)

// DefaultProvider is assumed for stored accounts written before multi-provider
// support existed.
const DefaultProvider = ProviderVercel

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderVercel || p == ProviderRailway
}

// ScopeKind describes what an account's token grants access to.
type ScopeKind string

const (
	ScopeUser      ScopeKind = "user"
	ScopeTeam      ScopeKind = "team"
	ScopeWorkspace ScopeKind = "workspace"
	ScopeProject   ScopeKind = "project"
)

// Account is one authenticated identity against one provider. ID is
// provider-qualified and unique within the credential cache.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ScopeKind ScopeKind `json:"scopeType"`
	TeamName  string    `json:"teamName,omitempty"`
	TeamSlug  string    `json:"teamSlug,omitempty"`
	Provider  Provider  `json:"provider"`

	// Token is the opaque provider secret. It never leaves the process through
	// JSON and is redacted from structured logs.
	Token string `json:"-"`
}

// DisplayName returns the user-chosen name when set, otherwise the username.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

// Redacted returns a copy of the account with the token removed.
func (a Account) Redacted() Account {
	a.Token = ""
	return a
}

// Context returns the subset of the account needed to normalize its deployments.
func (a Account) Context() AccountContext {
	return AccountContext{
		AccountID: a.ID,
		Provider:  a.Provider,
		TeamSlug:  a.TeamSlug,
	}
}

// LogValue implements slog.LogValuer so an Account can be logged directly
// without leaking its token.
func (a Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.ID),
		slog.String("provider", string(a.Provider)),
		slog.String("scope", string(a.ScopeKind)),
		slog.String("name", a.DisplayName()),
	)
}

// AccountContext carries the account fields that are stamped onto every
// normalized deployment.
type AccountContext struct {
	AccountID string
	Provider  Provider
	TeamSlug  string
}

// Profile is the identity a provider reports for a token.
type Profile struct {
	ID       string
	Username string
	Email    string
	Name     string
}

// TokenInfo describes the Vercel token in use. TeamID is empty for
// personal-scope tokens.
type TokenInfo struct {
	ID     string
	Name   string
	Type   string
	TeamID string
}

// Team is a Vercel team.
type Team struct {
	ID   string
	Name string
	Slug string
}

// Workspace is a Railway workspace (team).
type Workspace struct {
	ID   string
	Name string
}

// Project is a provider project. Services and Environments are only populated
// for Railway.
type Project struct {
	ID           string
	Name         string
	Framework    string
	UpdatedAt    int64
	Services     []Service
	Environments []Environment
}

// Service is a Railway service inside a project.
type Service struct {
	ID   string
	Name string
}

// Environment is a Railway environment inside a project.
type Environment struct {
	ID   string
	Name string
}
