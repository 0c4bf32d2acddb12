package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/archive"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/cemaden"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	httpadapter "github.com/couchcryptid/flood-risk-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/tide"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/dashboard"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/couchcryptid/flood-risk-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := archive.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to open risk archive", "backend", cfg.ArchiveBackend, "error", err)
		os.Exit(1)
	}

	stages := pipeline.Stages{
		Store:   csvstore.NewRainfallStore(cfg.DataDir, logger),
		Tide:    tide.NewLoader(cfg.TideSource, cfg.TideCacheTTL, clock, metrics, logger),
		Archive: store,
	}

	// Telemetry fetch is feature-flagged via CEMADEN_ENABLED; without it the
	// pipeline only recomputes from rainfall files already on disk.
	if cfg.CemadenEnabled {
		stages.Fetcher = cemaden.NewClient(cfg, metrics, logger)
		logger.Info("cemaden fetch enabled", "stations", cfg.CemadenStations, "timeout", cfg.CemadenTimeout)
	} else {
		logger.Info("cemaden fetch disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		stages.Publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaRiskTopic)
	}

	dash := dashboard.New(store, cfg.DashboardCacheSize, cfg.DashboardCacheTTL, clock, metrics, logger)
	stages.Refresher = dash

	transformer := pipeline.NewTransformer(cfg.RiskStations, cfg.MissingPolicy, logger)
	p := pipeline.New(stages, transformer, cfg.FetchInterval, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, dash, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("risk archive close error", "error", err)
	}

	logger.Info("shutdown complete")
}
