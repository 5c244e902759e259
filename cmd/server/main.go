// Package main runs the provision estimation API server:
// - Simulations (on demand): uploaded ledgers are resampled in the background
// - Sweeper (scheduled): fails simulations orphaned by a previous process
// - HTTP: REST API, websocket status stream, /health and /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"provision-risk-lab/internal/api"
	"provision-risk-lab/internal/config"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/service"
	"provision-risk-lab/internal/storage"
	chstore "provision-risk-lab/internal/storage/clickhouse"
	"provision-risk-lab/internal/storage/memory"
	"provision-risk-lab/internal/storage/migrations"
	pgstore "provision-risk-lab/internal/storage/postgres"
)

// stores holds the storage implementations selected by configuration.
type stores struct {
	simulations   storage.SimulationStore
	distributions storage.DistributionStore // nil without ClickHouse
}

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file (ignored if missing)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	logger := cfg.Log.NewLogger()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	svc := service.New(service.Options{
		Store:           st.simulations,
		Distributions:   st.distributions,
		Logger:          logger,
		DefaultSamples:  cfg.Simulation.DefaultSamples,
		DefaultAlpha:    cfg.Simulation.DefaultAlpha,
		Workers:         cfg.Simulation.Workers,
		Timeout:         cfg.Simulation.Timeout,
		MaxConcurrent:   cfg.Simulation.MaxConcurrent,
		TrajectoryCount: cfg.Simulation.TrajectoryCount,
	})

	sweeper, err := service.NewSweeper(svc, cfg.Simulation.SweepSchedule, logger)
	if err != nil {
		logger.Fatalf("Failed to create sweeper: %v", err)
	}
	sweeper.Start()

	router := api.NewRouter(api.Options{
		Service: svc,
		Reports: reporting.NewGenerator(st.simulations),
		Auth: api.AuthConfig{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			Disabled: cfg.Auth.Disabled,
		},
		Logger:         logger,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   cfg.HTTP.Addr,
			"memory": cfg.Storage.UseMemory,
			"auth":   !cfg.Auth.Disabled,
		}).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		if err != nil {
			logger.Errorf("HTTP server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	// Wait for second signal for immediate shutdown
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	sweeper.Stop(shutdownCtx)
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Simulations did not finish before the shutdown timeout: %v", err)
	}

	logger.Info("Shutdown complete")
}

// createStores creates the simulation store and, when a ClickHouse DSN is
// set, the distribution analytics store. Migrations run before use.
func createStores(ctx context.Context, cfg config.StorageConfig, logger logrus.FieldLogger) (*stores, func(), error) {
	if cfg.UseMemory {
		logger.Info("Using in-memory storage")
		return &stores{
			simulations:   memory.NewSimulationStore(),
			distributions: memory.NewDistributionStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN,
		pgstore.WithMaxConns(cfg.PostgresMaxConns),
		pgstore.WithMaxConnLifetime(cfg.PostgresConnTTL),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{simulations: pgstore.NewSimulationStore(pool)}
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN == "" {
		logger.Info("ClickHouse DSN not set, distribution analytics disabled")
		return st, cleanup, nil
	}

	// ClickHouse (migrations open the connection on the target database)
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st.distributions = chstore.NewDistributionStore(chConn)

	cleanup = func() {
		_ = chConn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}
