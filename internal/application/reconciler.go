package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Mode is the reconciler's state.
type Mode int

const (
	// ModeIdle means the building flag is down; only the flag is watched.
	ModeIdle Mode = iota
	// ModePolling means a build was seen in progress on the last tick.
	ModePolling
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Reconciler defaults.
const (
	DefaultIdleInterval      = 5 * time.Second
	DefaultPollInterval      = 10 * time.Second
	DefaultReconcilePageSize = 5
)

// ReconcilerConfig tunes the reconciliation loop.
type ReconcilerConfig struct {
	IdleInterval time.Duration
	PollInterval time.Duration
	FetchTimeout time.Duration
	PageSize     int
	Concurrency  int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.IdleInterval <= 0 {
		c.IdleInterval = DefaultIdleInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultReconcilePageSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultFanOut
	}
	return c
}

// interval returns how long to wait after a tick that ended in mode m.
func (c ReconcilerConfig) interval(m Mode) time.Duration {
	if m == ModePolling {
		return c.PollInterval
	}
	return c.IdleInterval
}

var errBuildFound = errors.New("build in progress")

// Reconciler lowers the building flag once no account has a build in
// progress. It is the only component that clears the flag.
type Reconciler struct {
	cache    *CredentialCache
	registry *ClientRegistry
	flag     *BuildingFlag
	tray     *TrayService
	metrics  driven.Metrics
	cfg      ReconcilerConfig
}

// NewReconciler creates a Reconciler. A nil metrics is replaced with a no-op.
func NewReconciler(
	cache *CredentialCache,
	registry *ClientRegistry,
	flag *BuildingFlag,
	tray *TrayService,
	metrics driven.Metrics,
	cfg ReconcilerConfig,
) *Reconciler {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &Reconciler{
		cache:    cache,
		registry: registry,
		flag:     flag,
		tray:     tray,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// Start runs the loop until ctx is canceled. Cancellation is observed at the
// next wake; an in-flight tick is abandoned through its context.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started",
		"idle_interval", r.cfg.IdleInterval,
		"poll_interval", r.cfg.PollInterval,
	)

	for {
		if ctx.Err() != nil {
			slog.Info("reconciler stopped")
			return
		}

		mode := r.Tick(ctx)
		timer := time.NewTimer(r.cfg.interval(mode))

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("reconciler stopped")
			return
		case <-timer.C:
		case <-r.flag.Wake():
			timer.Stop()
		}
	}
}

// Tick performs one step of the state machine and returns the resulting mode.
func (r *Reconciler) Tick(ctx context.Context) Mode {
	if !r.flag.IsSet() {
		r.metrics.ObserveReconcileTick(driven.ReconcileOutcomeIdle)
		return ModeIdle
	}

	token := r.flag.Observe()
	if err := r.cache.Initialize(ctx); err != nil {
		// Without accounts nothing can be checked; keep the flag and retry.
		slog.Error("reconciler could not load accounts", "error", err)
		r.metrics.ObserveReconcileTick(driven.ReconcileOutcomeBuilding)
		return ModePolling
	}

	building := r.anyInProgress(ctx)
	if ctx.Err() != nil {
		return ModePolling
	}
	if building {
		r.metrics.ObserveReconcileTick(driven.ReconcileOutcomeBuilding)
		return ModePolling
	}

	if !r.flag.ClearIfUnchanged(token) {
		// Raised again while polling; poll once more before lowering.
		r.metrics.ObserveReconcileTick(driven.ReconcileOutcomeBuilding)
		return ModePolling
	}
	r.tray.buildsFinished()
	r.metrics.ObserveReconcileTick(driven.ReconcileOutcomeCleared)
	slog.Info("no builds in progress, building flag cleared")
	return ModeIdle
}

// anyInProgress checks every account concurrently and stops at the first
// build found. Failed accounts count as not building.
func (r *Reconciler) anyInProgress(ctx context.Context) bool {
	accounts := r.cache.credentialedAccounts()
	if len(accounts) == 0 {
		return false
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, acct := range accounts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			natives, err := fetchNative(gctx, r.registry, acct, model.DeploymentFilter{}, r.cfg.PageSize, r.cfg.FetchTimeout)
			if err != nil {
				if gctx.Err() == nil {
					slog.Error("reconcile fetch failed", "account", acct, "error", err)
					r.metrics.ObserveProviderError(acct.Provider, "reconcile")
				}
				return nil
			}
			for _, n := range natives {
				if IsInProgress(n) {
					slog.Debug("build in progress", "account", acct)
					return errBuildFound
				}
			}
			return nil
		})
	}
	return errors.Is(g.Wait(), errBuildFound)
}
