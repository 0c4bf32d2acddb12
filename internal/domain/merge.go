package domain

import "sort"

// MergeStats describes the outcome of merging samples into a stored day.
type MergeStats struct {
	Rows       int // rows stored after the merge
	Duplicates int // rows discarded as duplicates
}

type sampleKey struct {
	station string
	at      int64
}

// DedupeSamples removes repeated readings of the same station and instant,
// keeping the last occurrence at its own position. Stations are identified by
// code, or by name when the code is empty.
func DedupeSamples(samples []RainfallSample) []RainfallSample {
	last := make(map[sampleKey]int, len(samples))
	for i, s := range samples {
		last[keyOfSample(s)] = i
	}

	out := make([]RainfallSample, 0, len(last))
	for i, s := range samples {
		if last[keyOfSample(s)] == i {
			out = append(out, s)
		}
	}
	return out
}

func keyOfSample(s RainfallSample) sampleKey {
	station := s.StationCode
	if station == "" {
		station = s.StationName
	}
	return sampleKey{station: station, at: s.Timestamp.UnixNano()}
}

// MergeRisk appends incoming to existing and keeps the last record for every
// (date, hour_ref, station_name). The result is ordered newest first: date
// descending, hour descending, then station name ascending.
func MergeRisk(existing, incoming []RiskRecord) []RiskRecord {
	all := make([]RiskRecord, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)

	last := make(map[RecordKey]int, len(all))
	for i, r := range all {
		last[r.Key()] = i
	}

	out := make([]RiskRecord, 0, len(last))
	for i, r := range all {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.HourRef != b.HourRef {
			return a.HourRef > b.HourRef
		}
		return a.StationName < b.StationName
	})
	return out
}
