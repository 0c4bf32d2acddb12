package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStation  = "X"
	otherStation = "Imbiribeira"
)

var testDay = time.Date(2024, time.January, 1, 0, 0, 0, 0, Recife)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, Recife)
}

func sample(station string, ts time.Time, mm float64) RainfallSample {
	return RainfallSample{StationName: station, Timestamp: ts, Millimeters: mm}
}

func TestAggregate_SingleSample(t *testing.T) {
	out := Aggregate([]RainfallSample{sample(testStation, at(10, 0), 5)}, testDay, []string{testStation})

	require.Len(t, out, 1)
	assert.Equal(t, "2024-01-01", out[0].Date)
	assert.Equal(t, "10:00:00", out[0].HourRef)
	assert.Equal(t, testStation, out[0].StationName)
	assert.Equal(t, 35.0, out[0].VP)
}

func TestAggregate_WindowsAreTrailing(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(9, 30), 4),
		sample(testStation, at(10, 0), 2),
		sample(testStation, at(10, 5), 1),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	require.Len(t, out, 2)

	assert.Equal(t, "09:00:00", out[0].HourRef)
	assert.Equal(t, 4.0, out[0].Rain10Min)
	assert.Equal(t, 4.0, out[0].Rain2H)
	assert.Equal(t, 28.0, out[0].VP)

	// 10:05 sees 10:00 and 10:05 in its 10-minute window; 09:30 only in the 2h one.
	assert.Equal(t, "10:00:00", out[1].HourRef)
	assert.Equal(t, 3.0, out[1].Rain10Min)
	assert.Equal(t, 7.0, out[1].Rain2H)
	assert.Equal(t, 25.0, out[1].VP)
}

func TestAggregate_WindowLowerBoundIsOpen(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(8, 0), 3),
		sample(testStation, at(10, 0), 1),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	require.Len(t, out, 2)
	// 08:00 is exactly two hours before 10:00 and falls outside (t-2h, t].
	assert.Equal(t, 1.0, out[1].Rain2H)
	assert.Equal(t, 7.0, out[1].VP)
}

func TestAggregate_LastSampleOfHourWins(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(10, 0), 5),
		sample(testStation, at(10, 50), 0),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Rain10Min)
	assert.Equal(t, 5.0, out[0].Rain2H)
	assert.Equal(t, 5.0, out[0].VP)
}

func TestAggregate_NoRecordForHoursWithoutSamples(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(10, 0), 1),
		sample(testStation, at(13, 0), 1),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	hours := make([]string, 0, len(out))
	for _, r := range out {
		hours = append(hours, r.HourRef)
	}
	assert.Equal(t, []string{"10:00:00", "13:00:00"}, hours)
}

func TestAggregate_FiltersStationsAndDay(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(0, 5), 1),
		sample(testStation, time.Date(2023, time.December, 31, 23, 58, 0, 0, Recife), 9),
		sample(testStation, time.Date(2024, time.January, 2, 0, 1, 0, 0, Recife), 9),
		sample("Unwanted", at(0, 5), 9),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	require.Len(t, out, 1)
	// The previous day's reading does not leak into the target day's windows.
	assert.Equal(t, 1.0, out[0].Rain10Min)
	assert.Equal(t, 7.0, out[0].VP)
}

func TestAggregate_NoStationsNoRows(t *testing.T) {
	out := Aggregate([]RainfallSample{sample(testStation, at(10, 0), 5)}, testDay, nil)
	assert.Empty(t, out)
}

func TestAggregate_StationWithoutSamples(t *testing.T) {
	out := Aggregate([]RainfallSample{sample(testStation, at(10, 0), 5)}, testDay, []string{testStation, otherStation})

	require.Len(t, out, 1)
	assert.Equal(t, testStation, out[0].StationName)
}

func TestAggregate_IndependentOfInputOrder(t *testing.T) {
	var samples []RainfallSample
	for i := 0; i < 48; i++ {
		ts := at(0, 0).Add(time.Duration(i) * 10 * time.Minute)
		samples = append(samples,
			sample(testStation, ts, float64(i%5)*0.2),
			sample(otherStation, ts, float64(i%3)*0.4),
		)
	}
	want := Aggregate(append([]RainfallSample(nil), samples...), testDay, []string{testStation, otherStation})

	shuffled := append([]RainfallSample(nil), samples...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	got := Aggregate(shuffled, testDay, []string{otherStation, testStation})

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(HourlyPressure{}, "Hour")); diff != "" {
		t.Fatalf("aggregate depends on input order (-want +got):\n%s", diff)
	}
	assert.Equal(t, otherStation, got[0].StationName)
}

func TestAggregate_DuplicateTimestampsBothCount(t *testing.T) {
	samples := []RainfallSample{
		sample(testStation, at(10, 0), 2),
		sample(testStation, at(10, 0), 3),
	}
	out := Aggregate(samples, testDay, []string{testStation})

	require.Len(t, out, 1)
	assert.Equal(t, 5.0, out[0].Rain10Min)
}

func TestAggregate_BucketsOffsetTimestampsInRecife(t *testing.T) {
	utc := []RainfallSample{sample(testStation, time.Date(2024, time.January, 1, 2, 0, 0, 0, time.UTC), 5)}
	prevDay := time.Date(2023, time.December, 31, 0, 0, 0, 0, Recife)

	assert.Empty(t, Aggregate(utc, testDay, []string{testStation}))

	out := Aggregate(utc, prevDay, []string{testStation})
	require.Len(t, out, 1)
	assert.Equal(t, "2023-12-31", out[0].Date)
	assert.Equal(t, "23:00:00", out[0].HourRef)
	assert.Equal(t, 35.0, out[0].VP)
}
