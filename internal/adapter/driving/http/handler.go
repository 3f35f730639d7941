// Package httphandler is the HTTP driving adapter: the REST API used by the
// UI shell and deploybarctl, plus the server-sent event stream.
package httphandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/deploybar/internal/application"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// maxBodyBytes bounds request bodies; the largest is a provider token.
const maxBodyBytes = 64 << 10

// Deps are the services the handler serves.
type Deps struct {
	Accounts    *application.AccountService
	Deployments *application.DeploymentService
	Tray        *application.TrayService
	Logs        *application.LogService
	Events      *Broker

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Background bounds work that outlives a request, such as followed log
	// streams. It is canceled on shutdown.
	Background context.Context
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if deps.Background == nil {
		deps.Background = context.Background()
	}
	if deps.Events == nil {
		deps.Events = NewBroker(logger)
	}
	return &Handler{deps: deps, logger: logger}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.AddAccount)
	mux.HandleFunc("GET /api/v1/accounts/active", h.GetActive)
	mux.HandleFunc("PUT /api/v1/accounts/active", h.SetActive)
	mux.HandleFunc("GET /api/v1/accounts/current", h.CurrentAccount)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", h.RemoveAccount)
	mux.HandleFunc("PATCH /api/v1/accounts/{id}", h.RenameAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}/token", h.GetAccountToken)

	mux.HandleFunc("POST /api/v1/auth/validate", h.ValidateToken)
	mux.HandleFunc("POST /api/v1/auth/token", h.SaveToken)
	mux.HandleFunc("DELETE /api/v1/auth/token", h.DeleteToken)

	mux.HandleFunc("GET /api/v1/deployments", h.ListDeployments)
	mux.HandleFunc("GET /api/v1/deployments/active", h.ListActiveDeployments)
	mux.HandleFunc("GET /api/v1/deployments/{id}", h.GetDeployment)
	mux.HandleFunc("GET /api/v1/deployments/{id}/logs", h.GetLogs)
	mux.HandleFunc("GET /api/v1/deployments/{id}/logs/errors", h.GetErrorLogs)
	mux.HandleFunc("POST /api/v1/deployments/{id}/logs/stream", h.StreamLogs)

	mux.HandleFunc("GET /api/v1/projects", h.ListProjects)

	mux.HandleFunc("GET /api/v1/tray", h.GetTray)
	mux.HandleFunc("PUT /api/v1/tray", h.UpdateTray)
	mux.HandleFunc("POST /api/v1/notifications", h.Notify)

	mux.Handle("GET /api/v1/events", h.deps.Events)
	if h.deps.Metrics != nil {
		mux.Handle("GET /metrics", h.deps.Metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListAccounts returns every stored account without tokens.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.deps.Accounts.ListAccounts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list accounts", err)
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddAccount validates a token with its provider and stores the account.
func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	var req AddAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	acct, err := h.deps.Accounts.AddAccount(r.Context(), model.Provider(req.Provider), req.Token, req.TokenType)
	if err != nil {
		writeServiceError(w, h.logger, "add account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// GetActive returns the active account ID, or null.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	id, err := h.deps.Accounts.GetActive(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "get active account", err)
		return
	}

	var resp ActiveAccountResponse
	if id != "" {
		resp.AccountID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetActive points the active account at an existing account.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	if err := h.deps.Accounts.SetActive(r.Context(), req.AccountID); err != nil {
		writeServiceError(w, h.logger, "set active account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CurrentAccount returns the active account.
func (h *Handler) CurrentAccount(w http.ResponseWriter, r *http.Request) {
	acct, ok, err := h.deps.Accounts.CurrentAccount(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "current account", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no active account")
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// RemoveAccount deletes an account. Unknown IDs are not an error.
func (h *Handler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Accounts.RemoveAccount(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "remove account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameAccount sets an account's display name.
func (h *Handler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.deps.Accounts.RenameAccount(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Name)); err != nil {
		writeServiceError(w, h.logger, "rename account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccountToken returns the raw token of an account.
func (h *Handler) GetAccountToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.deps.Accounts.GetAccountToken(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get account token", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// ValidateToken validates the active account's token with its provider. A
// rejected token removes the account and reports valid=false.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	profile, err := h.deps.Accounts.ValidateStored(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "validate token", err)
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:    true,
		ID:       profile.ID,
		Username: profile.Username,
		Email:    profile.Email,
		Name:     profile.Name,
	})
}

// SaveToken adds a Vercel account from a token and makes it active.
func (h *Handler) SaveToken(w http.ResponseWriter, r *http.Request) {
	var req SaveTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	acct, err := h.deps.Accounts.SaveToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, h.logger, "save token", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// DeleteToken removes the active account.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Accounts.DeleteActive(r.Context()); err != nil {
		writeServiceError(w, h.logger, "delete token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeployments returns the newest deployments across all accounts.
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	deps, err := h.deps.Deployments.ListAll(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, "list deployments", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentResponses(deps))
}

// ListActiveDeployments returns deployments of the active account only.
func (h *Handler) ListActiveDeployments(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := model.DeploymentFilter{
		ProjectID:     q.Get("projectId"),
		ServiceID:     q.Get("serviceId"),
		EnvironmentID: q.Get("environmentId"),
	}

	deps, err := h.deps.Deployments.ListForActive(r.Context(), filter, limit)
	if err != nil {
		writeServiceError(w, h.logger, "list active deployments", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentResponses(deps))
}

// GetDeployment returns one deployment of the given or active account.
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Deployments.Get(r.Context(), r.PathValue("id"), r.URL.Query().Get("accountId"))
	if err != nil {
		writeServiceError(w, h.logger, "get deployment", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentResponse(d))
}

// ListProjects returns the projects of the given or active account.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.Deployments.ListProjects(r.Context(), r.URL.Query().Get("accountId"))
	if err != nil {
		writeServiceError(w, h.logger, "list projects", err)
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLogs returns the current build log of a deployment.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := h.deps.Logs.Fetch(r.Context(), r.PathValue("id"), r.URL.Query().Get("accountId"))
	if err != nil {
		writeServiceError(w, h.logger, "fetch logs", err)
		return
	}

	resp := make([]LogLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, LogLineResponse{Timestamp: l.Timestamp, Text: l.Text, IsError: l.IsError})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetErrorLogs returns the error lines of a deployment's build log.
func (h *Handler) GetErrorLogs(w http.ResponseWriter, r *http.Request) {
	text, err := h.deps.Logs.ErrorText(r.Context(), r.PathValue("id"), r.URL.Query().Get("accountId"))
	if err != nil {
		writeServiceError(w, h.logger, "fetch error logs", err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorTextResponse{Text: text})
}

// StreamLogs starts following a deployment's build log in the background.
// Lines arrive on the event stream.
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	deploymentID := r.PathValue("id")
	accountID := r.URL.Query().Get("accountId")

	// The request context ends with the response, so the stream runs on the
	// handler's background context.
	go func() {
		if err := h.deps.Logs.Stream(h.deps.Background, deploymentID, accountID); err != nil {
			h.logger.Error("log stream failed", "deployment_id", deploymentID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, StreamStartedResponse{DeploymentID: deploymentID})
}

// GetTray returns the current tray state.
func (h *Handler) GetTray(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toTrayResponse(h.deps.Tray.State()))
}

// UpdateTray switches the tray between building and normal.
func (h *Handler) UpdateTray(w http.ResponseWriter, r *http.Request) {
	var req TrayRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.deps.Tray.SetBuilding(r.Context(), req.Building, req.Project)
	writeJSON(w, http.StatusOK, toTrayResponse(h.deps.Tray.State()))
}

// Notify forwards a notification to the UI shell.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	h.deps.Tray.Notify(req.Title, req.Body)
	w.WriteHeader(http.StatusAccepted)
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// parseLimit reads the optional limit query parameter. Zero means the
// service default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
