package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// LogStreamError is the payload of a deployment-log-error event.
type LogStreamError struct {
	DeploymentID string `json:"deploymentId"`
	Message      string `json:"message"`
}

// LogService reads build logs of deployments.
type LogService struct {
	cache    *CredentialCache
	registry *ClientRegistry
	emitter  driven.Emitter
}

// NewLogService creates a LogService. A nil emitter is replaced with a no-op.
func NewLogService(cache *CredentialCache, registry *ClientRegistry, emitter driven.Emitter) *LogService {
	if emitter == nil {
		emitter = driven.NopEmitter{}
	}
	return &LogService{cache: cache, registry: registry, emitter: emitter}
}

// Stream follows the build log of a deployment and emits one
// deployment-log event per line. A stream failure emits
// deployment-log-error; deployment-log-complete is always emitted once the
// stream has been opened. Stream blocks until the stream ends or ctx is done.
func (s *LogService) Stream(ctx context.Context, deploymentID, accountID string) error {
	acct, src, err := s.resolve(ctx, accountID)
	if err != nil {
		return err
	}

	slog.Info("streaming build logs", "deployment_id", deploymentID, "account", acct)
	err = src.StreamLogs(ctx, acct.Credential(), deploymentID, true, func(line model.LogLine) {
		s.emitter.Emit(driven.EventDeploymentLog, line)
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("build log stream failed", "deployment_id", deploymentID, "error", err)
		s.emitter.Emit(driven.EventDeploymentLogError, LogStreamError{
			DeploymentID: deploymentID,
			Message:      err.Error(),
		})
	}
	s.emitter.Emit(driven.EventDeploymentLogComplete, deploymentID)
	return nil
}

// Fetch returns the build log lines recorded so far.
func (s *LogService) Fetch(ctx context.Context, deploymentID, accountID string) ([]model.LogLine, error) {
	acct, src, err := s.resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	lines := make([]model.LogLine, 0, 64)
	err = src.StreamLogs(ctx, acct.Credential(), deploymentID, false, func(line model.LogLine) {
		lines = append(lines, line)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch build logs for %s: %w", deploymentID, err)
	}
	return lines, nil
}

// ErrorText returns the error lines of a build log joined by newlines, or
// every line when none looks like an error.
func (s *LogService) ErrorText(ctx context.Context, deploymentID, accountID string) (string, error) {
	lines, err := s.Fetch(ctx, deploymentID, accountID)
	if err != nil {
		return "", err
	}

	all := make([]string, 0, len(lines))
	var errs []string
	for _, line := range lines {
		all = append(all, line.Text)
		if looksLikeError(line.Text) {
			errs = append(errs, line.Text)
		}
	}
	if len(errs) == 0 {
		return strings.Join(all, "\n"), nil
	}
	return strings.Join(errs, "\n"), nil
}

// resolve picks the account by explicit ID, falling back to the active one.
func (s *LogService) resolve(ctx context.Context, accountID string) (model.Account, driven.LogSource, error) {
	if err := s.cache.Initialize(ctx); err != nil {
		return model.Account{}, nil, err
	}
	acct, err := resolveAccount(s.cache, accountID)
	if err != nil {
		return model.Account{}, nil, err
	}

	src, err := s.registry.LogSource(acct.Provider)
	if err != nil {
		return model.Account{}, nil, err
	}
	return acct, src, nil
}

func looksLikeError(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "error") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "err!")
}
