// Command backfill recomputes the risk archive from every daily rainfall
// file in a data directory. It uses the same pipeline stages as the service,
// so its output matches what the scheduled runs would have produced.
//
// Usage:
//
//	go run ./cmd/backfill \
//	  -data-dir data \
//	  -tide tabua_mare.csv \
//	  -archive resultado_risco_final.csv
//
// Flags default to the service's environment configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/archive"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/tide"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/couchcryptid/flood-risk-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := flag.String("data-dir", cfg.DataDir, "directory containing chuva_recife_*.csv files")
	tideSource := flag.String("tide", cfg.TideSource, "tide table path or URL")
	archivePath := flag.String("archive", cfg.ArchivePath, "risk archive path")
	backend := flag.String("backend", cfg.ArchiveBackend, "archive backend: csv or sqlite")
	policy := flag.String("missing-tide", cfg.MissingPolicy.String(), "missing tide policy: zero or gap")
	flag.Parse()

	if *dataDir == "" || *tideSource == "" || *archivePath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -data-dir, -tide, -archive")
	}

	missing, err := domain.ParseMissingPolicy(*policy)
	if err != nil {
		return err
	}
	cfg.DataDir = *dataDir
	cfg.TideSource = *tideSource
	cfg.ArchivePath = *archivePath
	cfg.ArchiveBackend = *backend
	cfg.MissingPolicy = missing

	logger := observability.NewLogger(cfg)
	metrics := observability.NewUnregisteredMetrics()
	clock := clockwork.NewRealClock()

	store, err := archive.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close archive: %v", err)
		}
	}()

	p := pipeline.New(pipeline.Stages{
		Store:   csvstore.NewRainfallStore(cfg.DataDir, logger),
		Tide:    tide.NewLoader(cfg.TideSource, cfg.TideCacheTTL, clock, metrics, logger),
		Archive: store,
	}, pipeline.NewTransformer(cfg.RiskStations, cfg.MissingPolicy, logger), cfg.FetchInterval, clock, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := p.Backfill(ctx)
	if err != nil {
		return err
	}
	log.Printf("backfill: %d records computed into %s", n, cfg.ArchivePath)
	return nil
}
