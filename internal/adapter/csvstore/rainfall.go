package csvstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

const (
	dailyPrefix = "chuva_recife_"
	dailySuffix = ".csv"
)

// RainfallStore keeps one CSV file of rainfall samples per civil day.
type RainfallStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewRainfallStore creates a store rooted at dir.
func NewRainfallStore(dir string, logger *slog.Logger) *RainfallStore {
	return &RainfallStore{dir: dir, logger: logger}
}

// Path returns the daily file for day.
func (s *RainfallStore) Path(day time.Time) string {
	return filepath.Join(s.dir, dailyPrefix+day.In(domain.Recife).Format(domain.DateLayout)+dailySuffix)
}

// Merge appends samples to the file for day and removes duplicates, keeping
// the most recent reading per station and timestamp.
func (s *RainfallStore) Merge(ctx context.Context, day time.Time, samples []domain.RainfallSample) (domain.MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx, day)
	if err != nil {
		return domain.MergeStats{}, err
	}

	combined := make([]domain.RainfallSample, 0, len(existing.Rows)+len(samples))
	combined = append(combined, existing.Rows...)
	combined = append(combined, samples...)
	merged := domain.DedupeSamples(combined)

	path := s.Path(day)
	if err := writeAtomic(path, func(w io.Writer) error {
		return domain.WriteRainfallCSV(w, merged)
	}); err != nil {
		return domain.MergeStats{}, err
	}

	stats := domain.MergeStats{Rows: len(merged), Duplicates: len(combined) - len(merged)}
	s.logger.Info("rainfall file saved", "path", path, "rows", stats.Rows, "duplicates", stats.Duplicates)
	return stats, nil
}

// Load parses the file for day. A missing file reads as empty.
func (s *RainfallStore) Load(ctx context.Context, day time.Time) (domain.ParseResult[domain.RainfallSample], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, day)
}

func (s *RainfallStore) load(ctx context.Context, day time.Time) (domain.ParseResult[domain.RainfallSample], error) {
	if err := ctx.Err(); err != nil {
		return domain.ParseResult[domain.RainfallSample]{}, err
	}
	path := s.Path(day)
	f, err := openIfExists(path)
	if err != nil || f == nil {
		return domain.ParseResult[domain.RainfallSample]{}, err
	}
	defer f.Close()

	res := domain.ParseRainfallCSV(f)
	for _, d := range res.Diagnostics {
		s.logger.Warn("rainfall row skipped", "path", path, "line", d.Line, "reason", d.Reason)
	}
	return res, nil
}

// Days lists the civil days that have a daily file, oldest first.
func (s *RainfallStore) Days(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var days []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, dailyPrefix) || !strings.HasSuffix(name, dailySuffix) {
			continue
		}
		day, err := domain.ParseDate(strings.TrimSuffix(strings.TrimPrefix(name, dailyPrefix), dailySuffix))
		if err != nil {
			s.logger.Debug("ignoring file with malformed date", "file", name)
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
