// Package dashboard serves the risk table for a day through a short-lived
// cache, so repeated page loads do not re-read the archive.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-etl/internal/cache"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// RecordReader reads archived risk records for one civil day.
type RecordReader interface {
	Records(ctx context.Context, date time.Time) ([]domain.RiskRecord, error)
}

// Service answers dashboard queries.
type Service struct {
	archive RecordReader
	cache   *cache.Cache[[]domain.RiskRecord]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a dashboard service caching up to size days for ttl each.
func New(archive RecordReader, size int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		archive: archive,
		cache:   cache.New[[]domain.RiskRecord](size, ttl, clock),
		metrics: metrics,
		logger:  logger,
	}
}

// Risk returns the risk records of date, newest hour first.
func (s *Service) Risk(ctx context.Context, date time.Time) ([]domain.RiskRecord, error) {
	day := domain.CivilDate(date)
	key := "risk:" + day.Format(domain.DateLayout)

	records, hit, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) ([]domain.RiskRecord, error) {
		return s.archive.Records(ctx, day)
	})
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.CacheLookups.WithLabelValues("risk", result).Inc()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Summary returns per-station aggregates of date.
func (s *Service) Summary(ctx context.Context, date time.Time) ([]domain.StationSummary, error) {
	records, err := s.Risk(ctx, date)
	if err != nil {
		return nil, err
	}
	return domain.Summarize(records), nil
}

// Refresh discards every cached day.
func (s *Service) Refresh() {
	s.cache.Purge()
	s.logger.Info("dashboard cache cleared")
}
