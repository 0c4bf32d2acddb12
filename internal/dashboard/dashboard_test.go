package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

type fakeArchive struct {
	calls   int
	records map[string][]domain.RiskRecord
	err     error
}

func (f *fakeArchive) Records(_ context.Context, date time.Time) ([]domain.RiskRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[date.Format(domain.DateLayout)], nil
}

func newTestService(archive RecordReader, clock clockwork.Clock) *Service {
	return New(archive, 4, 5*time.Minute, clock, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var may1 = time.Date(2024, time.May, 1, 0, 0, 0, 0, domain.Recife)

func sampleArchive() *fakeArchive {
	return &fakeArchive{records: map[string][]domain.RiskRecord{
		"2024-05-01": {
			{Date: "2024-05-01", HourRef: "11:00:00", StationName: "Imbiribeira", VP: 60, AM: 1, RiskValue: 60, Band: domain.BandModerateHigh},
			{Date: "2024-05-01", HourRef: "10:00:00", StationName: "Imbiribeira", VP: 20, AM: 1, RiskValue: 20, Band: domain.BandLow},
		},
	}}
}

func TestService_RiskCachedWithinTTL(t *testing.T) {
	archive := sampleArchive()
	clock := clockwork.NewFakeClock()
	s := newTestService(archive, clock)
	ctx := context.Background()

	recs, err := s.Risk(ctx, may1)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// Any time of day maps to the same cached day.
	_, err = s.Risk(ctx, may1.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, archive.calls)

	clock.Advance(5 * time.Minute)
	_, err = s.Risk(ctx, may1)
	require.NoError(t, err)
	assert.Equal(t, 2, archive.calls)
}

func TestService_RefreshForcesReload(t *testing.T) {
	archive := sampleArchive()
	s := newTestService(archive, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Risk(ctx, may1)
	require.NoError(t, err)
	s.Refresh()
	_, err = s.Risk(ctx, may1)
	require.NoError(t, err)
	assert.Equal(t, 2, archive.calls)
}

func TestService_ErrorsNotCached(t *testing.T) {
	archive := &fakeArchive{err: errors.New("disk gone")}
	s := newTestService(archive, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Risk(ctx, may1)
	require.Error(t, err)

	archive.err = nil
	recs, err := s.Risk(ctx, may1)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 2, archive.calls)
}

func TestService_Summary(t *testing.T) {
	s := newTestService(sampleArchive(), clockwork.NewFakeClock())

	sums, err := s.Summary(context.Background(), may1)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "Imbiribeira", sums[0].StationName)
	assert.Equal(t, 2, sums[0].Hours)
	assert.InDelta(t, 60, sums[0].MaxRisk, 1e-9)
	assert.Equal(t, domain.BandModerateHigh, sums[0].PeakBand)
	assert.Equal(t, "11:00:00", sums[0].PeakHour)
}
