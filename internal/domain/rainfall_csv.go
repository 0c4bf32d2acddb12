package domain

import (
	"io"
	"math"
	"strings"
)

// Canonical rainfall column names.
const (
	colStationCode = "codestacao"
	colStationName = "nome"
	colCity        = "cidade"
	colState       = "uf"
	colTimestamp   = "datahora"
	colValue       = "valor"
)

// rainfallColumns accepts the header spellings of the daily files, the feed
// payload and the dashboard exports.
var rainfallColumns = columnAliases{
	"codestacao":   colStationCode,
	"station_id":   colStationCode,
	"station_code": colStationCode,
	"nome":         colStationName,
	"nomeestacao":  colStationName,
	"station_name": colStationName,
	"cidade":       colCity,
	"city":         colCity,
	"uf":           colState,
	"state":        colState,
	"datahora":     colTimestamp,
	"timestamp":    colTimestamp,
	"valor":        colValue,
	"valormedida":  colValue,
	"value":        colValue,
	"millimeters":  colValue,
}

// ParseRainfallCSV reads a daily rainfall file. Timestamps are read as Recife
// civil time. Rows with an unparseable time, or a missing, non-numeric or
// negative value, are dropped and reported.
func ParseRainfallCSV(r io.Reader) ParseResult[RainfallSample] {
	var res ParseResult[RainfallSample]

	tbl, diags, err := readTable(r)
	res.Diagnostics = diags
	if err != nil {
		res.addf(0, "%v", err)
		return res
	}
	if tbl.header == nil {
		return res
	}

	cols := rainfallColumns.resolve(tbl.header)
	for _, required := range []string{colStationName, colTimestamp, colValue} {
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
		name := get(row, colStationName)
		if name == "" {
			res.addf(row.line, "missing station name")
			continue
		}
		ts, ok := parseCivilTime(get(row, colTimestamp))
		if !ok {
			res.addf(row.line, "unparseable timestamp %q", get(row, colTimestamp))
			continue
		}
		mm, err := parseDecimal(get(row, colValue))
		if err != nil || math.IsNaN(mm) || math.IsInf(mm, 0) {
			res.addf(row.line, "non-numeric rainfall %q", get(row, colValue))
			continue
		}
		if mm < 0 {
			res.addf(row.line, "negative rainfall %v", mm)
			continue
		}

		res.Rows = append(res.Rows, RainfallSample{
			StationCode: get(row, colStationCode),
			StationName: name,
			City:        get(row, colCity),
			State:       get(row, colState),
			Timestamp:   ts,
			Millimeters: mm,
		})
	}
	return res
}
