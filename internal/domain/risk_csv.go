package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// RiskHeader is the column layout of risk archives written by this module.
var RiskHeader = []string{"date", "hour_ref", "station_name", "VP", "AM", "risk_value", "risk_band"}

// RainfallHeader is the column layout of the daily rainfall files.
var RainfallHeader = []string{colStationCode, colCity, colStationName, colState, colTimestamp, colValue}

const (
	colDate      = "date"
	colHourRef   = "hour_ref"
	colVP        = "vp"
	colAM        = "am"
	colRiskValue = "risk_value"
	colRiskBand  = "risk_band"
)

// riskColumns also accepts the headers of archives produced before the
// columns were renamed.
var riskColumns = columnAliases{
	"date":                colDate,
	"data":                colDate,
	"hour_ref":            colHourRef,
	"hora_ref":            colHourRef,
	"station_name":        colStationName,
	"nomeestacao":         colStationName,
	"nome":                colStationName,
	"vp":                  colVP,
	"am":                  colAM,
	"risk_value":          colRiskValue,
	"nivel_risco_valor":   colRiskValue,
	"risk_band":           colRiskBand,
	"classificacao_risco": colRiskBand,
}

// ParseRiskCSV reads a risk archive. Risk value and band are recomputed from
// the two-decimal VP and AM columns so archives written under older rules read
// back consistently; a record written here reads back as its Normalized form.
// An empty AM cell is read as a gap record.
func ParseRiskCSV(r io.Reader) ParseResult[RiskRecord] {
	var res ParseResult[RiskRecord]

	tbl, diags, err := readTable(r)
	res.Diagnostics = diags
	if err != nil {
		res.addf(0, "%v", err)
		return res
	}
	if tbl.header == nil {
		return res
	}

	cols := riskColumns.resolve(tbl.header)
	for _, required := range []string{colDate, colHourRef, colStationName, colVP} {
		if _, ok := cols[required]; !ok {
			res.addf(tbl.headerLine, "missing %s column in header %q", required, strings.Join(tbl.header, string(tbl.sep)))
			return res
		}
	}
	get := func(row tableRow, col string) string {
		i, ok := cols[col]
		if !ok {
			return ""
		}
		return field(row.fields, i)
	}

	for _, row := range tbl.rows {
		date, err := time.Parse(DateLayout, get(row, colDate))
		if err != nil {
			res.addf(row.line, "unparseable date %q", get(row, colDate))
			continue
		}
		hour, err := time.Parse("15:04:05", get(row, colHourRef))
		if err != nil || hour.Minute() != 0 || hour.Second() != 0 {
			res.addf(row.line, "unparseable hour_ref %q", get(row, colHourRef))
			continue
		}
		name := get(row, colStationName)
		if name == "" {
			res.addf(row.line, "missing station name")
			continue
		}
		vp, err := parseDecimal(get(row, colVP))
		if err != nil || !isFinite(vp) {
			res.addf(row.line, "non-numeric VP %q", get(row, colVP))
			continue
		}

		rec := RiskRecord{
			Date:        date.Format(DateLayout),
			HourRef:     hour.Format("15:04:05"),
			StationName: name,
			VP:          vp,
		}
		am, err := parseDecimal(get(row, colAM))
		if err != nil || !isFinite(am) {
			rec.TideMissing = true
			res.Rows = append(res.Rows, rec)
			continue
		}
		rec.AM = am
		rec.RiskValue = RoundTo2(vp * am)
		rec.Band = ClassifyRisk(rec.RiskValue)
		res.Rows = append(res.Rows, rec)
	}
	return res
}

// WriteRiskCSV writes records with a header, numbers to two decimals. Gap
// records leave AM, risk_value and risk_band empty.
func WriteRiskCSV(w io.Writer, records []RiskRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RiskHeader); err != nil {
		return fmt.Errorf("write risk header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Date, r.HourRef, r.StationName, formatFixed2(r.VP), "", "", ""}
		if !r.TideMissing || r.Band != BandUnknown {
			row[4] = formatFixed2(r.AM)
			row[5] = formatFixed2(r.RiskValue)
			row[6] = string(r.Band)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write risk row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRainfallCSV writes samples in the daily file layout, timestamps as
// Recife civil time.
func WriteRainfallCSV(w io.Writer, samples []RainfallSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RainfallHeader); err != nil {
		return fmt.Errorf("write rainfall header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			s.StationCode,
			s.City,
			s.StationName,
			s.State,
			s.Timestamp.In(Recife).Format(TimestampLayout),
			strconv.FormatFloat(s.Millimeters, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write rainfall row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFixed2(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
