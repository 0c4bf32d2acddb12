// Command validate performs integrity checks on a risk archive: every row
// parses, keys are unique and ordered newest first, stored risk values and
// bands agree with VP × AM, and, when the inputs are given, the archive
// matches a fresh recomputation from the daily rainfall files and tide table.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -archive resultado_risco_final.csv \
//	  -data-dir data \
//	  -tide tabua_mare.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	archivePath := flag.String("archive", "", "path to the risk archive CSV")
	dataDir := flag.String("data-dir", "", "directory containing chuva_recife_*.csv files (optional)")
	tidePath := flag.String("tide", "", "path to the tide table (optional, required with -data-dir)")
	stations := flag.String("stations", sharedcfg.EnvOrDefault("RISK_STATIONS", config.DefaultRiskStations), "comma-separated station names to recompute")
	policy := flag.String("missing-tide", "zero", "missing tide policy used when the archive was built")
	flag.Parse()

	if *archivePath == "" || (*dataDir == "") != (*tidePath == "") {
		flag.Usage()
		os.Exit(1)
	}

	missing, err := domain.ParseMissingPolicy(*policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		archivePath: *archivePath,
		dataDir:     *dataDir,
		tidePath:    *tidePath,
		stations:    splitStations(*stations),
		policy:      missing,
	}
	if code := run(opts, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

type options struct {
	archivePath string
	dataDir     string
	tidePath    string
	stations    []string
	policy      domain.MissingPolicy
}

func run(opts options, out io.Writer) int {
	fmt.Fprintln(out, "=== Flood Risk Archive Validation ===")
	fmt.Fprintln(out)

	raw, err := loadCSV(opts.archivePath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load archive: %v\n", err)
		return 1
	}
	parsed, err := parseArchive(opts.archivePath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: parse archive: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateParse(parsed, raw),
		validateKeys(parsed.Rows),
		validateArithmetic(raw),
		validateRecompute(opts, parsed.Rows),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d archive rows, %d parsed\n", len(raw), len(parsed.Rows))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var rows []csvRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[strings.TrimSpace(h)] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func parseArchive(path string) (domain.ParseResult[domain.RiskRecord], error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ParseResult[domain.RiskRecord]{}, err
	}
	defer f.Close()
	return domain.ParseRiskCSV(f), nil
}

func splitStations(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ── Phase 1: Parse ──
// Every archive row must be readable by the service.

func validateParse(parsed domain.ParseResult[domain.RiskRecord], raw []csvRow) *phase {
	p := &phase{name: "Phase 1: Archive Parse"}

	for _, col := range domain.RiskHeader {
		if _, ok := raw[0].fields[col]; !ok {
			p.errorf("missing column %q", col)
		}
	}
	for _, d := range parsed.Diagnostics {
		p.errorf("%s", d)
	}
	if len(parsed.Rows) != len(raw) {
		p.errorf("parsed %d of %d rows", len(parsed.Rows), len(raw))
	}
	return p
}

// ── Phase 2: Keys ──
// (date, hour_ref, station_name) is unique and rows are ordered newest first.

func validateKeys(records []domain.RiskRecord) *phase {
	p := &phase{name: "Phase 2: Key Uniqueness and Ordering"}

	seen := make(map[domain.RecordKey]int, len(records))
	for i, r := range records {
		if first, dup := seen[r.Key()]; dup {
			p.errorf("record %d: duplicate of record %d (%s %s %s)", i+1, first+1, r.Date, r.HourRef, r.StationName)
			continue
		}
		seen[r.Key()] = i

		if i == 0 {
			continue
		}
		if prev := records[i-1]; !ordered(prev, r) {
			p.errorf("record %d: %s %s %s sorts before %s %s %s",
				i+1, r.Date, r.HourRef, r.StationName, prev.Date, prev.HourRef, prev.StationName)
		}
	}
	return p
}

func ordered(a, b domain.RiskRecord) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	if a.HourRef != b.HourRef {
		return a.HourRef > b.HourRef
	}
	return a.StationName <= b.StationName
}

// ── Phase 3: Arithmetic ──
// Stored risk values and bands are checked against the stored VP and AM
// before the parser recomputes them.

func validateArithmetic(raw []csvRow) *phase {
	p := &phase{name: "Phase 3: Risk Arithmetic"}

	for _, row := range raw {
		checkArithmeticRow(p.errorf, row)
	}
	return p
}

func checkArithmeticRow(pf func(string, ...any), row csvRow) {
	f := row.fields
	for _, col := range []string{"VP", "AM", "risk_value"} {
		if v := f[col]; v != "" && !twoDecimals(v) {
			pf("line %d: %s=%q is not written with two decimals", row.lineNum, col, v)
		}
	}

	vp, err := strconv.ParseFloat(f["VP"], 64)
	if err != nil {
		pf("line %d: VP=%q is not numeric", row.lineNum, f["VP"])
		return
	}
	if vp < 0 {
		pf("line %d: negative VP %v", row.lineNum, vp)
	}

	if f["AM"] == "" {
		if f["risk_value"] != "" || f["risk_band"] != "" {
			pf("line %d: gap record carries risk_value=%q risk_band=%q", row.lineNum, f["risk_value"], f["risk_band"])
		}
		return
	}

	am, err := strconv.ParseFloat(f["AM"], 64)
	if err != nil {
		pf("line %d: AM=%q is not numeric", row.lineNum, f["AM"])
		return
	}
	risk, err := strconv.ParseFloat(f["risk_value"], 64)
	if err != nil {
		pf("line %d: risk_value=%q is not numeric", row.lineNum, f["risk_value"])
		return
	}

	want := domain.RoundTo2(vp * am)
	if !floatEq(risk, want) {
		pf("line %d: risk_value %.2f, want %.2f (VP %.2f × AM %.2f)", row.lineNum, risk, want, vp, am)
	}
	if band := domain.ClassifyRisk(want); f["risk_band"] != string(band) {
		pf("line %d: risk_band %q, want %q for %.2f", row.lineNum, f["risk_band"], band, want)
	}
}

func twoDecimals(s string) bool {
	dot := strings.IndexByte(s, '.')
	return dot >= 0 && len(s)-dot-1 == 2
}

// ── Phase 4: Recompute ──
// The archive agrees with a fresh computation from the raw inputs. Archived
// history older than the rainfall files is not compared.

func validateRecompute(opts options, archived []domain.RiskRecord) *phase {
	p := &phase{name: "Phase 4: Recompute Parity"}
	if opts.dataDir == "" {
		p.skipped = true
		return p
	}

	want, err := recompute(opts)
	if err != nil {
		p.errorf("recompute: %v", err)
		return p
	}

	byKey := make(map[domain.RecordKey]domain.RiskRecord, len(archived))
	for _, r := range archived {
		byKey[r.Key()] = r
	}
	for _, w := range want {
		got, ok := byKey[w.Key()]
		if !ok {
			p.errorf("%s %s %s: missing from archive", w.Date, w.HourRef, w.StationName)
			continue
		}
		compareRecords(p.errorf, w, got)
	}
	return p
}

func recompute(opts options) ([]domain.RiskRecord, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := csvstore.NewRainfallStore(opts.dataDir, logger)

	days, err := store.Days(ctx)
	if err != nil {
		return nil, err
	}
	var samples []domain.RainfallSample
	for _, day := range days {
		loaded, err := store.Load(ctx, day)
		if err != nil {
			return nil, err
		}
		samples = append(samples, loaded.Rows...)
	}
	samples = domain.DedupeSamples(samples)

	f, err := os.Open(opts.tidePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tide := domain.NormalizeTide(f)
	if tide.Empty() {
		return nil, fmt.Errorf("tide table %s has no usable rows", opts.tidePath)
	}

	dates := make(map[string]bool)
	var out []domain.RiskRecord
	for _, s := range samples {
		day := domain.CivilDate(s.Timestamp)
		key := day.Format(domain.DateLayout)
		if dates[key] {
			continue
		}
		dates[key] = true
		vp := domain.Aggregate(samples, day, opts.stations)
		out = append(out, domain.Compose(vp, tide.Rows, opts.policy)...)
	}
	return out, nil
}

func compareRecords(pf func(string, ...any), want, got domain.RiskRecord) {
	id := fmt.Sprintf("%s %s %s", want.Date, want.HourRef, want.StationName)
	vp := domain.RoundTo2(want.VP)
	if !floatEq(vp, got.VP) {
		pf("%s: VP %.2f, want %.2f", id, got.VP, vp)
	}
	// Gap records carry no band.
	if want.Band == domain.BandUnknown {
		if got.Band != domain.BandUnknown {
			pf("%s: archived AM %.2f, want no tide", id, got.AM)
		}
		return
	}
	if got.Band == domain.BandUnknown {
		pf("%s: archived without tide, want AM %.2f", id, want.AM)
		return
	}
	norm := want.Normalized()
	if !floatEq(norm.AM, got.AM) {
		pf("%s: AM %.2f, want %.2f", id, got.AM, norm.AM)
	}
	if norm.Band != got.Band {
		pf("%s: band %q, want %q", id, got.Band, norm.Band)
	}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
