package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Band is the ordinal flood-risk classification of VP x AM.
type Band string

const (
	BandUnknown      Band = ""
	BandLow          Band = "Baixo"
	BandModerate     Band = "Moderado"
	BandModerateHigh Band = "Moderado Alto"
	BandHigh         Band = "Alto"
)

var (
	// riskThresholds are the lower bounds of every band above BandLow.
	// A value equal to a threshold belongs to the upper band.
	riskThresholds = []float64{30, 50, 100}
	riskBands      = []Band{BandLow, BandModerate, BandModerateHigh, BandHigh}
)

// ClassifyRisk maps a risk value to its band:
// <30 Baixo | [30,50) Moderado | [50,100) Moderado Alto | >=100 Alto.
func ClassifyRisk(value float64) Band {
	i := sort.Search(len(riskThresholds), func(i int) bool {
		return riskThresholds[i] > value
	})
	return riskBands[i]
}

// ParseBand accepts a band label case-insensitively. Unknown labels map to BandUnknown.
func ParseBand(s string) Band {
	s = strings.TrimSpace(s)
	for _, b := range riskBands {
		if strings.EqualFold(s, string(b)) {
			return b
		}
	}
	return BandUnknown
}

// MissingPolicy decides what happens to a risk record whose tide height is
// missing or not numeric.
type MissingPolicy int

const (
	// PolicyZeroFill treats a missing height as 0 so every record carries a
	// definite risk value and band.
	PolicyZeroFill MissingPolicy = iota
	// PolicyGap keeps the record but leaves AM, risk value and band unset.
	PolicyGap
)

func (p MissingPolicy) String() string {
	if p == PolicyGap {
		return "gap"
	}
	return "zero"
}

// ParseMissingPolicy reads "zero" (also "zero-fill", "zerofill") or "gap".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero", "zero-fill", "zerofill":
		return PolicyZeroFill, nil
	case "gap":
		return PolicyGap, nil
	default:
		return PolicyZeroFill, fmt.Errorf("unknown missing-tide policy %q", s)
	}
}

// RiskRecord joins one VP record with the tide height of the same hour.
// TideMissing marks a gap record: no usable height and no risk band. Records
// zero-filled under PolicyZeroFill are not gaps.
type RiskRecord struct {
	Date        string  `json:"date"`
	HourRef     string  `json:"hour_ref"`
	StationName string  `json:"station_name"`
	VP          float64 `json:"VP"`
	AM          float64 `json:"AM"`
	TideMissing bool    `json:"tide_missing,omitempty"`
	RiskValue   float64 `json:"risk_value"`
	Band        Band    `json:"risk_band"`
}

// RecordKey identifies a risk record in an archive.
type RecordKey struct {
	Date        string
	HourRef     string
	StationName string
}

// Key returns the archive uniqueness key of r.
func (r RiskRecord) Key() RecordKey {
	return RecordKey{Date: r.Date, HourRef: r.HourRef, StationName: r.StationName}
}

type hourKey struct {
	date    string
	hourRef string
}

// Compose left-joins VP records with tide samples on (date, hour_ref). Every
// VP record yields exactly one risk record, in input order. A non-finite VP
// counts as 0. Missing or non-numeric heights follow policy.
func Compose(vp []HourlyPressure, am []TideSample, policy MissingPolicy) []RiskRecord {
	tide := make(map[hourKey]float64, len(am))
	for _, s := range am {
		tide[hourKey{date: s.Date, hourRef: s.HourRef}] = s.AM
	}

	out := make([]RiskRecord, 0, len(vp))
	for _, p := range vp {
		rec := RiskRecord{
			Date:        p.Date,
			HourRef:     p.HourRef,
			StationName: p.StationName,
			VP:          finiteOrZero(p.VP),
		}

		height, ok := tide[hourKey{date: p.Date, hourRef: p.HourRef}]
		if !ok || !isFinite(height) {
			if policy == PolicyGap {
				rec.TideMissing = true
				out = append(out, rec)
				continue
			}
			height = 0
		}

		rec.AM = height
		rec.RiskValue = RoundTo2(rec.VP * rec.AM)
		rec.Band = ClassifyRisk(rec.RiskValue)
		out = append(out, rec)
	}
	return out
}

// MissingTide counts the VP records that have no usable tide height.
func MissingTide(vp []HourlyPressure, am []TideSample) int {
	tide := make(map[hourKey]float64, len(am))
	for _, s := range am {
		tide[hourKey{date: s.Date, hourRef: s.HourRef}] = s.AM
	}
	missing := 0
	for _, p := range vp {
		if height, ok := tide[hourKey{date: p.Date, hourRef: p.HourRef}]; !ok || !isFinite(height) {
			missing++
		}
	}
	return missing
}

// Normalized returns r as archives store it: VP and AM at two decimals with
// the risk value and band recomputed from those. Gap records keep no AM.
func (r RiskRecord) Normalized() RiskRecord {
	r.VP = RoundTo2(finiteOrZero(r.VP))
	if r.TideMissing || r.Band == BandUnknown {
		r.TideMissing = true
		r.AM, r.RiskValue, r.Band = 0, 0, BandUnknown
		return r
	}
	r.AM = RoundTo2(finiteOrZero(r.AM))
	r.RiskValue = RoundTo2(r.VP * r.AM)
	r.Band = ClassifyRisk(r.RiskValue)
	return r
}

// RoundTo2 rounds x to two decimals, halves to even.
func RoundTo2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finiteOrZero(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	return x
}
