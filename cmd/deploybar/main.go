package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	keyringadapter "github.com/ericfisherdev/deploybar/internal/adapter/driven/keyring"
	"github.com/ericfisherdev/deploybar/internal/adapter/driven/providerhttp"
	"github.com/ericfisherdev/deploybar/internal/adapter/driven/railway"
	sqliteadapter "github.com/ericfisherdev/deploybar/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/deploybar/internal/adapter/driven/telemetry"
	"github.com/ericfisherdev/deploybar/internal/adapter/driven/vercel"
	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
	"github.com/ericfisherdev/deploybar/internal/application"
	"github.com/ericfisherdev/deploybar/internal/config"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"idle_interval", cfg.IdleInterval,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the secure store.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			slog.Error("error closing secure store", "error", closeErr)
		}
	}()

	// 4. Wire provider clients over a shared rate-limited transport.
	transport := providerhttp.NewLimitedTransport(http.DefaultTransport, cfg.RateLimit, cfg.RateBurst)
	registry := application.NewClientRegistry(
		vercel.NewClient(cfg.VercelAPIURL, transport),
		railway.NewClient(cfg.RailwayAPIURL, transport),
	)

	// 5. Metrics.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewPrometheusMetrics(promRegistry)

	// 6. Application services.
	broker := httphandler.NewBroker(logger)
	cache := application.NewCredentialCache(store)
	flag := application.NewBuildingFlag()
	tray := application.NewTrayService(flag, broker, metrics)

	deployments := application.NewDeploymentService(cache, registry, broker, metrics, application.DeploymentServiceConfig{
		PerAccountLimit: cfg.PerAccountLimit,
		FetchTimeout:    cfg.FetchTimeout,
		DefaultLimit:    cfg.DefaultLimit,
	})
	reconciler := application.NewReconciler(cache, registry, flag, tray, metrics, application.ReconcilerConfig{
		IdleInterval: cfg.IdleInterval,
		PollInterval: cfg.PollInterval,
		FetchTimeout: cfg.FetchTimeout,
		PageSize:     cfg.ReconcilePageSize,
	})

	// Hydrate eagerly so a broken store is reported at startup; services
	// retry on first use if this fails.
	if err := cache.Initialize(ctx); err != nil {
		slog.Error("credential cache not loaded", "error", err)
	}

	go reconciler.Start(ctx)

	// 7. HTTP API.
	apiHandler := httphandler.NewHandler(httphandler.Deps{
		Accounts:    application.NewAccountService(cache, registry),
		Deployments: deployments,
		Tray:        tray,
		Logs:        application.NewLogService(cache, registry, broker),
		Events:      broker,
		Metrics:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		Background:  ctx,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("deploybar started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// openStore selects the secure store backend. The returned func releases it
// on shutdown.
func openStore(ctx context.Context, cfg *config.Config) (driven.SecureBlobStore, func() error, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		key, err := sqliteadapter.DeriveKey(cfg.SecretKey)
		if err != nil {
			return nil, nil, err
		}
		db, err := sqliteadapter.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("secure store opened", "backend", cfg.Store, "path", db.Path())
		return sqliteadapter.NewBlobRepo(db, key), db.Close, nil
	case config.StoreKeyring:
		slog.Info("secure store opened", "backend", cfg.Store)
		return keyringadapter.NewStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown secure store %q", cfg.Store)
	}
}
