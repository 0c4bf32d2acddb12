package domain

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StationSummary condenses one station's risk records for one day.
type StationSummary struct {
	Date        string  `json:"date"`
	StationName string  `json:"station_name"`
	Hours       int     `json:"hours"`
	MaxVP       float64 `json:"max_vp"`
	MeanVP      float64 `json:"mean_vp"`
	MaxRisk     float64 `json:"max_risk_value"`
	PeakBand    Band    `json:"peak_band"`
	PeakHour    string  `json:"peak_hour"`
}

// Summarize groups records by (date, station) and reports the peak hour of
// each group. Groups are ordered by date, then station name. Ties on the peak
// risk value go to the earliest hour.
func Summarize(records []RiskRecord) []StationSummary {
	type group struct {
		date, station string
		rows          []RiskRecord
	}
	index := make(map[[2]string]*group)
	var groups []*group
	for _, r := range records {
		k := [2]string{r.Date, r.StationName}
		g, ok := index[k]
		if !ok {
			g = &group{date: r.Date, station: r.StationName}
			index[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].date != groups[j].date {
			return groups[i].date < groups[j].date
		}
		return groups[i].station < groups[j].station
	})

	out := make([]StationSummary, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.rows, func(i, j int) bool { return g.rows[i].HourRef < g.rows[j].HourRef })

		vps := make([]float64, len(g.rows))
		risks := make([]float64, len(g.rows))
		for i, r := range g.rows {
			vps[i] = r.VP
			risks[i] = r.RiskValue
		}
		peak := floats.MaxIdx(risks)

		out = append(out, StationSummary{
			Date:        g.date,
			StationName: g.station,
			Hours:       len(g.rows),
			MaxVP:       floats.Max(vps),
			MeanVP:      RoundTo2(stat.Mean(vps, nil)),
			MaxRisk:     risks[peak],
			PeakBand:    g.rows[peak].Band,
			PeakHour:    g.rows[peak].HourRef,
		})
	}
	return out
}
