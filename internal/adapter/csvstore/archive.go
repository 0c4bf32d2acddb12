package csvstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// RiskArchive is the cumulative risk table stored as a single CSV file.
type RiskArchive struct {
	path       string
	seedURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	seeded bool
}

// NewRiskArchive creates an archive at path. When seedURL is set, the remote
// history it points to is merged underneath local rows on the first write.
func NewRiskArchive(path, seedURL string, logger *slog.Logger) *RiskArchive {
	return &RiskArchive{
		path:       path,
		seedURL:    seedURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Merge folds records into the archive. Records sharing a date, hour and
// station with an existing row replace it. It returns the archive size.
func (a *RiskArchive) Merge(ctx context.Context, records []domain.RiskRecord) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.read(ctx)
	if err != nil {
		return 0, err
	}
	if !a.seeded && a.seedURL != "" {
		existing = domain.MergeRisk(a.fetchSeed(ctx), existing)
	}
	a.seeded = true

	merged := domain.MergeRisk(existing, records)
	if err := writeAtomic(a.path, func(w io.Writer) error {
		return domain.WriteRiskCSV(w, merged)
	}); err != nil {
		return 0, err
	}
	a.logger.Info("risk archive saved", "path", a.path, "rows", len(merged), "incoming", len(records))
	return len(merged), nil
}

// Records returns the archived rows for the civil day date, newest hour first.
func (a *RiskArchive) Records(ctx context.Context, date time.Time) ([]domain.RiskRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	day := date.In(domain.Recife).Format(domain.DateLayout)
	var out []domain.RiskRecord
	for _, r := range all {
		if r.Date == day {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns every archived row in archive order.
func (a *RiskArchive) All(ctx context.Context) ([]domain.RiskRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.read(ctx)
}

// Close is a no-op; the archive holds no open handles between calls.
func (a *RiskArchive) Close() error { return nil }

func (a *RiskArchive) read(ctx context.Context) ([]domain.RiskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openIfExists(a.path)
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()

	res := domain.ParseRiskCSV(f)
	for _, d := range res.Diagnostics {
		a.logger.Warn("archive row skipped", "path", a.path, "line", d.Line, "reason", d.Reason)
	}
	return res.Rows, nil
}

// fetchSeed downloads the remote history. Failures are logged and yield no
// rows so a missing seed never blocks a run.
func (a *RiskArchive) fetchSeed(ctx context.Context) []domain.RiskRecord {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.seedURL, nil)
	if err != nil {
		a.logger.Warn("archive seed skipped", "url", a.seedURL, "error", err)
		return nil
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("archive seed skipped", "url", a.seedURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("archive seed skipped", "url", a.seedURL, "error", fmt.Sprintf("status %d", resp.StatusCode))
		return nil
	}
	res := domain.ParseRiskCSV(resp.Body)
	a.logger.Info("archive seed loaded", "url", a.seedURL, "rows", len(res.Rows), "skipped", len(res.Diagnostics))
	return res.Rows
}
