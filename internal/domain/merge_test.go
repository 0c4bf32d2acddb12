package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeSamples_KeepsLast(t *testing.T) {
	samples := []RainfallSample{
		{StationCode: "A", StationName: "Alpha", Timestamp: at(10, 0), Millimeters: 1},
		{StationCode: "B", StationName: "Beta", Timestamp: at(10, 0), Millimeters: 2},
		{StationCode: "A", StationName: "Alpha", Timestamp: at(10, 0), Millimeters: 3},
	}
	out := DedupeSamples(samples)

	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].StationCode)
	assert.Equal(t, 3.0, out[1].Millimeters)
}

func TestDedupeSamples_FallsBackToName(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(10, 0), 1),
		sample(testStation, at(10, 0), 4),
		sample(testStation, at(10, 10), 1),
	}
	out := DedupeSamples(samples)

	require.Len(t, out, 2)
	assert.Equal(t, 4.0, out[0].Millimeters)
}

func TestDedupeSamples_IdempotentReingestion(t *testing.T) {
	batch := []RainfallSample{
		{StationCode: "A", StationName: "Alpha", Timestamp: at(10, 0), Millimeters: 1},
		{StationCode: "A", StationName: "Alpha", Timestamp: at(10, 10), Millimeters: 2},
		{StationCode: "B", StationName: "Beta", Timestamp: at(10, 0), Millimeters: 0},
	}

	once := DedupeSamples(batch)
	twice := DedupeSamples(append(append([]RainfallSample(nil), once...), batch...))
	assert.Len(t, twice, len(once))

	stations := []string{"Alpha", "Beta"}
	riskOnce := MergeRisk(nil, Compose(Aggregate(once, testDay, stations), nil, PolicyZeroFill))
	riskTwice := MergeRisk(riskOnce, Compose(Aggregate(twice, testDay, stations), nil, PolicyZeroFill))
	assert.Len(t, riskTwice, len(riskOnce))
}

func TestMergeRisk_KeepLastAndOrder(t *testing.T) {
	existing := []RiskRecord{
		{Date: "2024-01-01", HourRef: "10:00:00", StationName: "B", RiskValue: 1},
		{Date: "2024-01-02", HourRef: "09:00:00", StationName: "A", RiskValue: 2},
	}
	incoming := []RiskRecord{
		{Date: "2024-01-01", HourRef: "10:00:00", StationName: "B", RiskValue: 99},
		{Date: "2024-01-02", HourRef: "09:00:00", StationName: "C", RiskValue: 3},
		{Date: "2024-01-02", HourRef: "11:00:00", StationName: "A", RiskValue: 4},
	}
	out := MergeRisk(existing, incoming)

	require.Len(t, out, 4)
	keys := make([]RecordKey, len(out))
	for i, r := range out {
		keys[i] = r.Key()
	}
	assert.Equal(t, []RecordKey{
		{Date: "2024-01-02", HourRef: "11:00:00", StationName: "A"},
		{Date: "2024-01-02", HourRef: "09:00:00", StationName: "A"},
		{Date: "2024-01-02", HourRef: "09:00:00", StationName: "C"},
		{Date: "2024-01-01", HourRef: "10:00:00", StationName: "B"},
	}, keys)
	assert.Equal(t, 99.0, out[3].RiskValue)
}
