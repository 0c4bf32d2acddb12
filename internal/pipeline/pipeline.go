package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// RainfallFetcher pulls recent rain-gauge readings from the telemetry feed.
type RainfallFetcher interface {
	FetchRainfall(ctx context.Context) ([]domain.RainfallSample, error)
}

// RainfallStore keeps rainfall samples grouped by civil day.
type RainfallStore interface {
	Merge(ctx context.Context, day time.Time, samples []domain.RainfallSample) (domain.MergeStats, error)
	Load(ctx context.Context, day time.Time) (domain.ParseResult[domain.RainfallSample], error)
	Days(ctx context.Context) ([]time.Time, error)
}

// TideSource provides the hourly tide table.
type TideSource interface {
	Load(ctx context.Context) ([]domain.TideSample, error)
}

// Archive accumulates risk records across runs.
type Archive interface {
	Merge(ctx context.Context, records []domain.RiskRecord) (int, error)
}

// Publisher forwards freshly computed risk records downstream.
type Publisher interface {
	Publish(ctx context.Context, records []domain.RiskRecord) error
}

// Refresher is notified after the archive changes.
type Refresher interface {
	Refresh()
}

// Stages are the collaborators of a Pipeline. Fetcher, Publisher and
// Refresher are optional.
type Stages struct {
	Fetcher   RainfallFetcher
	Store     RainfallStore
	Tide      TideSource
	Archive   Archive
	Publisher Publisher
	Refresher Refresher
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	RunID       string
	Day         string
	Fetched     int
	Samples     int
	Records     int
	ArchiveRows int
}

const initialBackoff = 5 * time.Second

// Pipeline orchestrates fetch, store, aggregate, compose and archive.
type Pipeline struct {
	stages      Stages
	transformer *RiskTransformer
	interval    time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Pipeline that runs every interval on clock.
func New(stages Stages, transformer *RiskTransformer, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		stages:      stages,
		transformer: transformer,
		interval:    interval,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes a run immediately and then every interval until the context
// is cancelled. Failed runs are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineUp.Set(1)
	defer p.metrics.PipelineUp.Set(0)

	backoff := initialBackoff
	for {
		wait := p.interval
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			wait = min(backoff, p.interval)
			backoff = nextBackoff(backoff, p.interval)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce fetches recent readings, merges them into today's file and
// recomputes today's risk table into the archive.
func (p *Pipeline) RunOnce(ctx context.Context) (RunResult, error) {
	start := p.clock.Now()
	day := domain.CivilDate(start)
	res := RunResult{RunID: uuid.NewString(), Day: day.Format(domain.DateLayout)}
	logger := p.logger.With("run_id", res.RunID, "date", res.Day)

	err := p.runOnce(ctx, day, &res, logger)

	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("run failed", "error", err)
		return res, err
	}
	p.metrics.RunsTotal.WithLabelValues("ok").Inc()
	p.metrics.LastRunSuccess.Set(float64(p.clock.Now().Unix()))
	p.ready.Store(true)
	logger.Info("run complete",
		"fetched", res.Fetched,
		"samples", res.Samples,
		"records", res.Records,
		"archive_rows", res.ArchiveRows,
	)
	return res, nil
}

func (p *Pipeline) runOnce(ctx context.Context, day time.Time, res *RunResult, logger *slog.Logger) error {
	if p.stages.Fetcher != nil {
		samples, err := p.stages.Fetcher.FetchRainfall(ctx)
		if err != nil {
			// Partial results are still stored; a dead feed only means fewer rows.
			logger.Warn("rainfall fetch incomplete", "error", err, "samples", len(samples))
		}
		res.Fetched = len(samples)
		if len(samples) > 0 {
			stats, err := p.stages.Store.Merge(ctx, day, samples)
			if err != nil {
				return fmt.Errorf("store rainfall: %w", err)
			}
			logger.Debug("rainfall merged", "rows", stats.Rows, "duplicates", stats.Duplicates)
		}
	}

	loaded, err := p.stages.Store.Load(ctx, day)
	if err != nil {
		return fmt.Errorf("load rainfall: %w", err)
	}
	p.countDropped(loaded.Diagnostics)
	res.Samples = len(loaded.Rows)
	if loaded.Malformed() {
		logger.Warn("rainfall file unreadable", "diagnostics", len(loaded.Diagnostics))
		return nil
	}
	if loaded.Empty() {
		logger.Info("no rainfall samples for day")
		return nil
	}

	tide, err := p.stages.Tide.Load(ctx)
	if err != nil {
		return fmt.Errorf("load tide: %w", err)
	}

	records := p.transformer.Transform(loaded.Rows, day, tide)
	res.Records = len(records)
	if len(records) == 0 {
		logger.Info("no samples for the configured stations")
		return nil
	}
	p.metrics.RecordsComputed.Add(float64(len(records)))
	p.observeBands(records)

	return p.load(ctx, records, res)
}

// Backfill recomputes the risk table of every stored day and merges it into
// the archive in one write. It returns the number of records computed.
func (p *Pipeline) Backfill(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	days, err := p.stages.Store.Days(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rainfall days: %w", err)
	}
	if len(days) == 0 {
		logger.Info("no rainfall files to backfill")
		return 0, nil
	}

	// Readings fetched shortly after midnight land in the next day's file, so
	// every file is read before splitting by sample date.
	var all []domain.RainfallSample
	for _, day := range days {
		loaded, err := p.stages.Store.Load(ctx, day)
		if err != nil {
			return 0, fmt.Errorf("load rainfall %s: %w", day.Format(domain.DateLayout), err)
		}
		p.countDropped(loaded.Diagnostics)
		all = append(all, loaded.Rows...)
	}
	all = domain.DedupeSamples(all)

	tide, err := p.stages.Tide.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tide: %w", err)
	}

	var records []domain.RiskRecord
	for _, day := range sampleDays(all) {
		dayRecords := p.transformer.Transform(all, day, tide)
		logger.Debug("day recomputed", "date", day.Format(domain.DateLayout), "records", len(dayRecords))
		records = append(records, dayRecords...)
	}
	if len(records) == 0 {
		logger.Info("backfill produced no records")
		return 0, nil
	}
	p.metrics.RecordsComputed.Add(float64(len(records)))

	var res RunResult
	if err := p.load(ctx, records, &res); err != nil {
		return 0, err
	}
	logger.Info("backfill complete", "days", len(days), "records", len(records), "archive_rows", res.ArchiveRows)
	return len(records), nil
}

// load archives records, then publishes them and refreshes readers.
func (p *Pipeline) load(ctx context.Context, records []domain.RiskRecord, res *RunResult) error {
	rows, err := p.stages.Archive.Merge(ctx, records)
	if err != nil {
		return fmt.Errorf("archive risk records: %w", err)
	}
	res.ArchiveRows = rows

	if p.stages.Publisher != nil {
		if err := p.stages.Publisher.Publish(ctx, records); err != nil {
			return fmt.Errorf("publish risk records: %w", err)
		}
		p.metrics.RecordsPublished.Add(float64(len(records)))
	}
	if p.stages.Refresher != nil {
		p.stages.Refresher.Refresh()
	}
	return nil
}

func (p *Pipeline) countDropped(diags []domain.Diagnostic) {
	if len(diags) > 0 {
		p.metrics.RowsDropped.WithLabelValues("rainfall").Add(float64(len(diags)))
	}
}

func (p *Pipeline) observeBands(records []domain.RiskRecord) {
	counts := map[domain.Band]int{
		domain.BandLow:          0,
		domain.BandModerate:     0,
		domain.BandModerateHigh: 0,
		domain.BandHigh:         0,
	}
	for _, r := range records {
		if r.Band != domain.BandUnknown {
			counts[r.Band]++
		}
	}
	for band, n := range counts {
		p.metrics.RiskByBand.WithLabelValues(string(band)).Set(float64(n))
	}
}

// sampleDays returns the distinct civil days of samples, oldest first.
func sampleDays(samples []domain.RainfallSample) []time.Time {
	seen := make(map[string]time.Time)
	for _, s := range samples {
		day := domain.CivilDate(s.Timestamp)
		seen[day.Format(domain.DateLayout)] = day
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
