package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/internal/upstream"
	"github.com/mmynk/settleup/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var snapshots storage.SnapshotStore
	if cfg.Storage.DatabasePath != "" {
		store, err := sqlite.New(cfg.Storage.DatabasePath, cfg.Storage.KeepSnapshots)
		if err != nil {
			return err
		}
		defer store.Close()
		snapshots = store
		logger.Info("Snapshot cache initialized", "database", cfg.Storage.DatabasePath)
	} else {
		logger.Warn("Snapshot cache disabled, upstream outages will fail requests")
	}

	client := upstream.New(upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		RetryMax:        cfg.Upstream.RetryMax,
		RetryWaitMin:    cfg.Upstream.RetryWaitMin,
		RetryWaitMax:    cfg.Upstream.RetryWaitMax,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerTimeout:  cfg.Upstream.BreakerTimeout,
	}, logger, m)

	// Validate already rejected unknown strategies.
	strategy, _ := calculator.ParseStrategy(cfg.Engine.Strategy)

	svc := service.NewBalanceService(service.Deps{
		Source:    client,
		Snapshots: snapshots,
		Metrics:   m,
		Logger:    logger,
		Engine: service.EngineOptions{
			Strategy:          strategy,
			DedupParticipants: cfg.Engine.DedupParticipants,
		},
		SnapshotInterval: cfg.Storage.SnapshotInterval,
	})

	server := api.NewServer(api.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, svc, client, m, logger)

	logger.Info("Settle-up gateway configured",
		"upstream", cfg.Upstream.BaseURL,
		"strategy", strategy,
		"dedup_participants", cfg.Engine.DedupParticipants,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
