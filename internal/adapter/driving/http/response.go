package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps an application error onto an HTTP status. Unknown
// errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", "error", err)
	} else {
		logger.Debug(op+" rejected", "status", status, "error", err)
	}
	writeError(w, status, message)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, "no active account"
	case errors.Is(err, model.ErrProviderRejected):
		return http.StatusUnprocessableEntity, "provider rejected the token"
	case errors.Is(err, model.ErrProviderUnreachable):
		return http.StatusBadGateway, "provider unreachable"
	case errors.Is(err, model.ErrUnsupportedProvider):
		return http.StatusBadRequest, "operation not supported for this provider"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AccountResponse is the JSON representation of an account. Tokens are only
// served by the dedicated token endpoint.
type AccountResponse struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name"`
	ScopeType   string `json:"scope_type"`
	TeamName    string `json:"team_name,omitempty"`
	TeamSlug    string `json:"team_slug,omitempty"`
}

// ActiveAccountResponse reports the active account pointer.
type ActiveAccountResponse struct {
	AccountID *string `json:"account_id"`
}

// TokenResponse carries a raw provider token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ValidateResponse is the result of validating the stored token.
type ValidateResponse struct {
	Valid    bool   `json:"valid"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// DeploymentResponse is the JSON representation of a unified deployment.
type DeploymentResponse struct {
	ID                string `json:"id"`
	AccountID         string `json:"account_id"`
	Provider          string `json:"provider"`
	Name              string `json:"name"`
	URL               string `json:"url,omitempty"`
	Status            string `json:"status"`
	Finished          bool   `json:"finished"`
	CreatedAt         *int64 `json:"created_at"`
	CommitMessage     string `json:"commit_message,omitempty"`
	CommitMessageHTML string `json:"commit_message_html,omitempty"`
	Branch            string `json:"branch,omitempty"`
	ProjectID         string `json:"project_id,omitempty"`
	ServiceID         string `json:"service_id,omitempty"`
	GitAuthorLogin    string `json:"git_author_login,omitempty"`
	TeamSlug          string `json:"team_slug,omitempty"`
}

// ProjectResponse is a provider project. Services and environments are only
// reported for Railway.
type ProjectResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Framework    string          `json:"framework,omitempty"`
	UpdatedAt    int64           `json:"updated_at,omitempty"`
	Services     []NamedResponse `json:"services,omitempty"`
	Environments []NamedResponse `json:"environments,omitempty"`
}

// NamedResponse is an ID and display name pair.
type NamedResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LogLineResponse is one build log line.
type LogLineResponse struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	IsError   bool   `json:"is_error"`
}

// ErrorTextResponse carries the error lines of a build log.
type ErrorTextResponse struct {
	Text string `json:"text"`
}

// StreamStartedResponse acknowledges a background log stream.
type StreamStartedResponse struct {
	DeploymentID string `json:"deployment_id"`
}

// TrayResponse is the JSON representation of the tray state.
type TrayResponse struct {
	Building bool   `json:"building"`
	Title    string `json:"title"`
	Tooltip  string `json:"tooltip"`
	Project  string `json:"project,omitempty"`
}

// AddAccountRequest is the body of POST /api/v1/accounts.
type AddAccountRequest struct {
	Provider  string `json:"provider"`
	Token     string `json:"token"`
	TokenType string `json:"tokenType,omitempty"`
}

// SetActiveRequest is the body of PUT /api/v1/accounts/active.
type SetActiveRequest struct {
	AccountID string `json:"accountId"`
}

// RenameRequest is the body of PATCH /api/v1/accounts/{id}.
type RenameRequest struct {
	Name string `json:"name"`
}

// SaveTokenRequest is the body of POST /api/v1/auth/token.
type SaveTokenRequest struct {
	Token string `json:"token"`
}

// TrayRequest is the body of PUT /api/v1/tray.
type TrayRequest struct {
	Building bool   `json:"building"`
	Project  string `json:"project,omitempty"`
}

// NotificationRequest is the body of POST /api/v1/notifications.
type NotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Provider:    string(a.Provider),
		Username:    a.Username,
		Email:       a.Email,
		Name:        a.Name,
		DisplayName: a.DisplayName(),
		ScopeType:   string(a.ScopeKind),
		TeamName:    a.TeamName,
		TeamSlug:    a.TeamSlug,
	}
}

func toDeploymentResponse(d model.UnifiedDeployment) DeploymentResponse {
	return DeploymentResponse{
		ID:                d.ID,
		AccountID:         d.AccountID,
		Provider:          string(d.Provider),
		Name:              d.Name,
		URL:               d.URL,
		Status:            string(d.Status),
		Finished:          d.Status.IsTerminal(),
		CreatedAt:         d.CreatedAtMillis,
		CommitMessage:     d.CommitMessage,
		CommitMessageHTML: RenderCommitMessage(d.CommitMessage),
		Branch:            d.Branch,
		ProjectID:         d.ProjectID,
		ServiceID:         d.ServiceID,
		GitAuthorLogin:    d.GitAuthorLogin,
		TeamSlug:          d.TeamSlug,
	}
}

func toDeploymentResponses(deps []model.UnifiedDeployment) []DeploymentResponse {
	resp := make([]DeploymentResponse, 0, len(deps))
	for _, d := range deps {
		resp = append(resp, toDeploymentResponse(d))
	}
	return resp
}

func toProjectResponse(p model.Project) ProjectResponse {
	resp := ProjectResponse{ID: p.ID, Name: p.Name, Framework: p.Framework, UpdatedAt: p.UpdatedAt}
	for _, svc := range p.Services {
		resp.Services = append(resp.Services, NamedResponse{ID: svc.ID, Name: svc.Name})
	}
	for _, env := range p.Environments {
		resp.Environments = append(resp.Environments, NamedResponse{ID: env.ID, Name: env.Name})
	}
	return resp
}

func toTrayResponse(s model.TrayState) TrayResponse {
	return TrayResponse{Building: s.Building, Title: s.Title, Tooltip: s.Tooltip, Project: s.Project}
}
