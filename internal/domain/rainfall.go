package domain

import (
	"sort"
	"time"
)

const (
	shortWindow = 10 * time.Minute
	longWindow  = 2 * time.Hour

	// shortWindowScale turns a 10-minute depth into an hourly-equivalent rate.
	shortWindowScale = 6
)

// RainfallSample is one rain-gauge reading over the instrument's native
// sampling interval. Timestamp is Recife civil time.
type RainfallSample struct {
	StationCode string    `json:"station_code,omitempty"`
	StationName string    `json:"station_name"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Millimeters float64   `json:"millimeters"`
}

// HourlyPressure is the precipitation-pressure indicator (VP) of one station
// for one hour bucket.
type HourlyPressure struct {
	Date        string    `json:"date"`
	HourRef     string    `json:"hour_ref"`
	StationName string    `json:"station_name"`
	Hour        time.Time `json:"-"`
	Rain10Min   float64   `json:"rain_10min"`
	Rain2H      float64   `json:"rain_2h"`
	VP          float64   `json:"VP"`
}

// Aggregate computes hourly VP records for the given civil day and stations.
//
// Per station the samples of that day are ordered by time and two trailing
// sums are evaluated at every sample t: rain over (t-10m, t] and over
// (t-2h, t]. Each hour bucket takes the sums of its last sample and
// VP = 6*rain10m + rain2h. Hours without samples produce no record.
// Stations are emitted in name order.
func Aggregate(samples []RainfallSample, day time.Time, stations []string) []HourlyPressure {
	wanted := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		wanted[s] = struct{}{}
	}
	date := day.In(Recife).Format(DateLayout)

	byStation := make(map[string][]RainfallSample)
	for _, s := range samples {
		if _, ok := wanted[s.StationName]; !ok {
			continue
		}
		s.Timestamp = s.Timestamp.In(Recife)
		if s.Timestamp.Format(DateLayout) != date {
			continue
		}
		byStation[s.StationName] = append(byStation[s.StationName], s)
	}

	names := make([]string, 0, len(byStation))
	for name := range byStation {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []HourlyPressure
	for _, name := range names {
		out = append(out, aggregateStation(name, byStation[name])...)
	}
	return out
}

func aggregateStation(name string, series []RainfallSample) []HourlyPressure {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	var out []HourlyPressure
	short, long := 0, 0
	for i, s := range series {
		t := s.Timestamp
		for !series[short].Timestamp.After(t.Add(-shortWindow)) {
			short++
		}
		for !series[long].Timestamp.After(t.Add(-longWindow)) {
			long++
		}

		rain10 := sumMillimeters(series[short : i+1])
		rain2h := sumMillimeters(series[long : i+1])
		hour := hourStart(t)
		rec := HourlyPressure{
			Date:        hour.Format(DateLayout),
			HourRef:     hourRef(hour),
			StationName: name,
			Hour:        hour,
			Rain10Min:   rain10,
			Rain2H:      rain2h,
			VP:          rain10*shortWindowScale + rain2h,
		}

		// The series is sorted, so a bucket's samples are contiguous and the
		// last one overwrites the rest.
		if n := len(out); n > 0 && out[n-1].Hour.Equal(hour) {
			out[n-1] = rec
			continue
		}
		out = append(out, rec)
	}
	return out
}

func sumMillimeters(samples []RainfallSample) float64 {
	var total float64
	for _, s := range samples {
		total += s.Millimeters
	}
	return total
}
