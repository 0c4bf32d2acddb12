package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// markerLineRe matches lines left behind by unresolved merges in the
	// upstream repositories, e.g. "<<<<<<< HEAD", "=======", ">>>>>>> ff542cf2".
	markerLineRe = regexp.MustCompile(`^(<{2,}|={2,}|>{2,})`)

	// civilLayouts are the timestamp spellings seen across feed and file revisions.
	// Fractional seconds ("2024-05-01 12:10:00.0") are accepted by time.Parse
	// without being spelled out.
	civilLayouts = []string{
		TimestampLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		time.RFC3339,
	}
)

// columnAliases maps lower-cased accepted header spellings to canonical names.
type columnAliases map[string]string

// resolve returns the position of each canonical column in header.
// The first header cell matching a canonical name wins.
func (a columnAliases) resolve(header []string) map[string]int {
	cols := make(map[string]int, len(a))
	for i, name := range header {
		canonical, ok := a[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, seen := cols[canonical]; !seen {
			cols[canonical] = i
		}
	}
	return cols
}

type tableRow struct {
	line   int
	fields []string
}

// table is a delimited text file split into header and data rows.
type table struct {
	sep        rune
	headerLine int
	header     []string
	rows       []tableRow
}

// decimalComma reports whether numbers use a comma as decimal separator.
// Semicolon-separated files come from spreadsheet exports that do.
func (t table) decimalComma() bool {
	return t.sep == ';'
}

// readTable reads delimited text, discarding blank and marker lines. The
// separator is ';' when the first remaining line contains one, ',' otherwise.
// Lines that cannot be split are reported and skipped.
func readTable(r io.Reader) (table, []Diagnostic, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return table{}, nil, fmt.Errorf("read table: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	var (
		tbl   table
		diags []Diagnostic
	)
	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if markerLineRe.MatchString(trimmed) {
			diags = append(diags, Diagnostic{Line: lineNo, Reason: "discarded marker line"})
			continue
		}

		if tbl.header == nil {
			tbl.sep = ','
			if strings.ContainsRune(line, ';') {
				tbl.sep = ';'
			}
		}

		fields, err := splitLine(line, tbl.sep)
		if err != nil {
			diags = append(diags, Diagnostic{Line: lineNo, Reason: fmt.Sprintf("split line: %v", err)})
			continue
		}
		if tbl.header == nil {
			tbl.header = fields
			tbl.headerLine = lineNo
			continue
		}
		tbl.rows = append(tbl.rows, tableRow{line: lineNo, fields: fields})
	}
	return tbl, diags, nil
}

func splitLine(line string, sep rune) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.Read()
}

// field returns the trimmed cell at i, or "" when the row is short.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// parseCivilTime parses a wall-clock timestamp as Recife civil time. Values
// carrying an explicit offset are converted to Recife.
func parseCivilTime(s string) (time.Time, bool) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, s, Recife); err == nil {
			return t.In(Recife), true
		}
	}
	return time.Time{}, false
}

// parseDecimal parses a number written with either decimal separator.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
