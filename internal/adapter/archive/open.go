// Package archive selects the risk archive backend from configuration.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// Store is implemented by every archive backend.
type Store interface {
	Merge(ctx context.Context, records []domain.RiskRecord) (int, error)
	Records(ctx context.Context, date time.Time) ([]domain.RiskRecord, error)
	All(ctx context.Context) ([]domain.RiskRecord, error)
	Close() error
}

// Open returns the backend named by cfg.ArchiveBackend at cfg.ArchivePath.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveCSV:
		return csvstore.NewRiskArchive(cfg.ArchivePath, cfg.ArchiveSeedURL, logger), nil
	case config.ArchiveSQLite:
		if cfg.ArchiveSeedURL != "" {
			logger.Warn("ARCHIVE_SEED_URL is only used by the csv backend")
		}
		return sqlite.Open(cfg.ArchivePath, logger)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}
