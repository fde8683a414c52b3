// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/auditflow/internal/api"
	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/config"
	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/metrics"
	"github.com/tomtom215/auditflow/internal/pipeline"
	"github.com/tomtom215/auditflow/internal/supervisor"
	"github.com/tomtom215/auditflow/internal/supervisor/services"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always executes.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Logger defaults apply until the config is known.
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logging.Init(cfg.Logging.ToLogging())
	logging.Info().
		Int("sinks", len(cfg.Audit.Sinks)).
		Int("alert_rules", len(cfg.Audit.AlertRules)).
		Bool("ingest", cfg.Ingest.Enabled).
		Bool("http", cfg.Server.Enabled).
		Msg("Starting auditd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := pipeline.New(ctx, cfg.Audit,
		audit.WithLogger(logging.WithComponent("audit")),
		audit.WithMetrics(metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to build audit pipeline")
		return 1
	}
	defer destroyManager(manager, cfg)

	tree, err := supervisor.NewSupervisorTree(nil, supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}
	addServices(tree, manager, cfg)

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	exitCode := 0
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			exitCode = 1
		}
	}
	stop()

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	return exitCode
}

// addServices registers the enabled services in their layers.
func addServices(tree *supervisor.SupervisorTree, manager *audit.Manager, cfg *config.Config) {
	if cfg.Retention.Enabled {
		tree.AddStorageService(services.NewRetentionService(manager, cfg.Retention.Interval))
	}

	if cfg.Ingest.Enabled {
		tree.AddIngestService(services.NewIngestService(manager,
			services.OpenSource(cfg.Ingest.Source),
			services.WithIngestRateLimit(cfg.Ingest.RateLimit, cfg.Ingest.Burst),
		))
	}

	if cfg.Server.Enabled {
		server := services.NewAdminServer(cfg.Server, api.NewRouter(manager, api.RouterConfig{
			Gatherer:        prometheus.DefaultGatherer,
			HealthRateLimit: cfg.Server.HealthRateLimit,
		}))
		tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Addr, cfg.Server.ShutdownTimeout))
	}
}

// destroyManager flushes the queue and releases every store once all
// producers have stopped.
func destroyManager(manager *audit.Manager, cfg *config.Config) {
	timeout := cfg.Supervisor.ShutdownTimeout
	if timeout <= 0 {
		timeout = supervisor.DefaultTreeConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	manager.Destroy(ctx)
	for _, err := range manager.DestroyErrors() {
		logging.Error().Err(err).Msg("Store failed to close cleanly")
	}

	stats := manager.Stats()
	logging.Info().
		Int64("processed", stats.Processed).
		Int64("failed", stats.Failed).
		Int64("filtered", stats.Filtered).
		Msg("auditd stopped")
}
