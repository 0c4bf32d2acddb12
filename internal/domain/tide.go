package domain

import (
	"io"
	"math"
	"sort"
	"strings"
	"time"
)

// Canonical tide column names.
const (
	colTideTime   = "datahora"
	colTideHeight = "AM"
)

// tideColumns lists every header spelling the tide tables have used.
var tideColumns = columnAliases{
	"hora_exata": colTideTime,
	"datahora":   colTideTime,
	"altura_m":   colTideHeight,
	"altura":     colTideHeight,
	"am":         colTideHeight,
}

// TideSample is the reference tide height (AM, meters) for one hour.
// AM is NaN when the source cell was not numeric.
type TideSample struct {
	Date    string    `json:"date"`
	HourRef string    `json:"hour_ref"`
	Hour    time.Time `json:"-"`
	AM      float64   `json:"AM"`
}

// NormalizeTide parses a tide table into one sample per hour.
//
// Two layouts are accepted, told apart by the first non-empty line:
// semicolon-separated with decimal commas, or comma-separated with decimal
// points. Marker lines are discarded before parsing. Rows whose timestamp does
// not parse are dropped; rows whose height does not parse are kept with a NaN
// height. When several rows fall in the same hour the last one wins.
func NormalizeTide(r io.Reader) ParseResult[TideSample] {
	var res ParseResult[TideSample]

	tbl, diags, err := readTable(r)
	res.Diagnostics = diags
	if err != nil {
		res.addf(0, "%v", err)
		return res
	}
	if tbl.header == nil {
		res.addf(0, "tide table is empty")
		return res
	}

	cols := tideColumns.resolve(tbl.header)
	timeIdx, okTime := cols[colTideTime]
	heightIdx, okHeight := cols[colTideHeight]
	if !okTime || !okHeight {
		res.addf(tbl.headerLine, "tide header %q lacks a timestamp or height column", strings.Join(tbl.header, string(tbl.sep)))
		return res
	}

	byHour := make(map[hourKey]int)
	for _, row := range tbl.rows {
		raw := field(row.fields, timeIdx)
		ts, ok := parseCivilTime(cleanTimestampCell(raw))
		if !ok {
			res.addf(row.line, "unparseable timestamp %q", raw)
			continue
		}

		height, err := parseDecimal(field(row.fields, heightIdx))
		if err != nil {
			res.addf(row.line, "non-numeric height %q", field(row.fields, heightIdx))
			height = math.NaN()
		}

		hour := hourStart(ts)
		sample := TideSample{
			Date:    hour.Format(DateLayout),
			HourRef: hourRef(hour),
			Hour:    hour,
			AM:      height,
		}
		key := hourKey{date: sample.Date, hourRef: sample.HourRef}
		if i, seen := byHour[key]; seen {
			res.Rows[i] = sample
			continue
		}
		byHour[key] = len(res.Rows)
		res.Rows = append(res.Rows, sample)
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		return res.Rows[i].Hour.Before(res.Rows[j].Hour)
	})
	return res
}

// cleanTimestampCell drops residue glued to the timestamp by a wrong split,
// e.g. "2024-01-01 10:00:00;0" or "2024-01-01 10:00:00,0".
func cleanTimestampCell(s string) string {
	s, _, _ = strings.Cut(s, ";")
	s, _, _ = strings.Cut(s, ",")
	return strings.TrimSpace(s)
}
