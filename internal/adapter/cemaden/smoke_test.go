//go:build cemaden

package cemaden

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// These tests hit the real CEMADEN API and require CEMADEN_EMAIL and CEMADEN_PASS.
// Run with: go test -tags=cemaden ./internal/adapter/cemaden/ -v -count=1

func TestSmoke_FetchRainfall(t *testing.T) {
	if os.Getenv("CEMADEN_EMAIL") == "" || os.Getenv("CEMADEN_PASS") == "" {
		t.Fatal("CEMADEN_EMAIL and CEMADEN_PASS must be set to run smoke tests")
	}
	cfg, err := config.Load()
	require.NoError(t, err)

	c := NewClient(cfg, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	samples, err := c.FetchRainfall(context.Background())
	require.NoError(t, err)
	t.Logf("fetched %d samples", len(samples))
}
