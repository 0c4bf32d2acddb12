// Package tide loads the hourly reference tide table from a URL or a local file.
package tide

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-etl/internal/cache"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// ErrNoTide is returned when the tide table yields no usable rows.
var ErrNoTide = errors.New("tide table has no usable rows")

// Loader reads and caches the tide table.
type Loader struct {
	source     string
	httpClient *http.Client
	cache      *cache.Cache[[]domain.TideSample]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewLoader creates a loader for source, an http(s) URL or a file path.
// Parsed tables are kept for ttl.
func NewLoader(source string, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Loader {
	return &Loader{
		source:     source,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache.New[[]domain.TideSample](1, ttl, clock),
		metrics:    metrics,
		logger:     logger,
	}
}

// Load returns the hourly tide samples.
func (l *Loader) Load(ctx context.Context) ([]domain.TideSample, error) {
	samples, hit, err := l.cache.GetOrLoad(ctx, l.source, l.fetch)
	result := "miss"
	if hit {
		result = "hit"
	}
	l.metrics.CacheLookups.WithLabelValues("tide", result).Inc()
	return samples, err
}

// Invalidate drops the cached table so the next Load reads the source again.
func (l *Loader) Invalidate() {
	l.cache.Purge()
}

func (l *Loader) fetch(ctx context.Context) ([]domain.TideSample, error) {
	body, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	res := domain.NormalizeTide(body)
	for _, d := range res.Diagnostics {
		l.logger.Warn("tide row issue", "source", l.source, "line", d.Line, "reason", d.Reason)
	}
	if len(res.Diagnostics) > 0 {
		l.metrics.RowsDropped.WithLabelValues("tide").Add(float64(len(res.Diagnostics)))
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("load tide from %s: %w", l.source, ErrNoTide)
	}
	l.logger.Info("tide table loaded", "source", l.source, "hours", len(res.Rows))
	return res.Rows, nil
}

func (l *Loader) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(l.source, "http://") && !strings.HasPrefix(l.source, "https://") {
		f, err := os.Open(l.source)
		if err != nil {
			return nil, fmt.Errorf("open tide file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tide request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("tide source error: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
