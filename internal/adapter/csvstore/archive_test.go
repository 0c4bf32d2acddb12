package csvstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

func riskRecord(date, hour, station string, vp, am float64) domain.RiskRecord {
	return domain.Compose([]domain.HourlyPressure{{Date: date, HourRef: hour, StationName: station, VP: vp}},
		[]domain.TideSample{{Date: date, HourRef: hour, AM: am}}, domain.PolicyZeroFill)[0]
}

func TestRiskArchive_MergeAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resultado_risco_final.csv")
	a := NewRiskArchive(path, "", discardLogger())
	ctx := context.Background()

	n, err := a.Merge(ctx, []domain.RiskRecord{
		riskRecord("2024-05-01", "10:00:00", "Imbiribeira", 35, 1.23),
		riskRecord("2024-05-02", "01:00:00", "Imbiribeira", 10, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = a.Merge(ctx, []domain.RiskRecord{riskRecord("2024-05-01", "10:00:00", "Imbiribeira", 80, 1.5)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := a.Records(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 120, recs[0].RiskValue, 1e-9)
	assert.Equal(t, domain.BandHigh, recs[0].Band)

	all, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-05-02", all[0].Date, "newest first")
}

func TestRiskArchive_MissingFileIsEmpty(t *testing.T) {
	a := NewRiskArchive(filepath.Join(t.TempDir(), "none.csv"), "", discardLogger())
	recs, err := a.Records(context.Background(), testDay)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRiskArchive_ReadsLegacyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resultado_risco_final.csv")
	legacy := "data,hora_ref,nomeEstacao,VP,AM,Nivel_Risco_Valor,Classificacao_Risco\n" +
		"2024-05-01,09:00:00,Torreão,20,1,20.0,Baixo\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	a := NewRiskArchive(path, "", discardLogger())
	_, err := a.Merge(context.Background(), []domain.RiskRecord{riskRecord("2024-05-01", "10:00:00", "Torreão", 40, 1)})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,hour_ref,station_name,VP,AM,risk_value,risk_band\n"+
		"2024-05-01,10:00:00,Torreão,40.00,1.00,40.00,Moderado\n"+
		"2024-05-01,09:00:00,Torreão,20.00,1.00,20.00,Baixo\n", string(data))
}

func TestRiskArchive_SeedMergedUnderLocalRows(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("data,hora_ref,nomeEstacao,VP,AM\n" +
			"2024-04-30,23:00:00,X,1,1\n" +
			"2024-05-01,10:00:00,X,1,1\n"))
	}))
	defer srv.Close()

	a := NewRiskArchive(filepath.Join(t.TempDir(), "archive.csv"), srv.URL, discardLogger())
	ctx := context.Background()

	n, err := a.Merge(ctx, []domain.RiskRecord{riskRecord("2024-05-01", "10:00:00", "X", 60, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := a.Records(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 60, recs[0].VP, 1e-9)

	_, err = a.Merge(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "seed is fetched once")
}

func TestRiskArchive_SeedFailureIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewRiskArchive(filepath.Join(t.TempDir(), "archive.csv"), srv.URL, discardLogger())
	n, err := a.Merge(context.Background(), []domain.RiskRecord{riskRecord("2024-05-01", "10:00:00", "X", 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
