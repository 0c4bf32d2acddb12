package pipeline

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// RiskTransformer turns one day of rainfall samples and the tide table into
// risk records for the configured stations.
type RiskTransformer struct {
	stations []string
	policy   domain.MissingPolicy
	logger   *slog.Logger
}

// NewTransformer creates a RiskTransformer for stations, filling missing
// tide heights according to policy.
func NewTransformer(stations []string, policy domain.MissingPolicy, logger *slog.Logger) *RiskTransformer {
	return &RiskTransformer{
		stations: stations,
		policy:   policy,
		logger:   logger,
	}
}

// Transform aggregates the samples of day into hourly pressure and joins it
// with the tide heights.
func (t *RiskTransformer) Transform(samples []domain.RainfallSample, day time.Time, tide []domain.TideSample) []domain.RiskRecord {
	vp := domain.Aggregate(samples, day, t.stations)
	records := domain.Compose(vp, tide, t.policy)

	if missing := domain.MissingTide(vp, tide); missing > 0 {
		t.logger.Warn("hours without tide height",
			"date", day.Format(domain.DateLayout),
			"hours", missing,
			"policy", t.policy.String(),
		)
	}
	return records
}
