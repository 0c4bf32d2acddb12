package domain

import "fmt"

// Diagnostic describes one input line a parser skipped or repaired.
// Line is 1-based; 0 means the problem concerns the input as a whole.
type Diagnostic struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Reason
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
}

// ParseResult carries the rows a parsing stage produced together with what it
// had to drop. Callers tell "no data yet" (Empty without diagnostics) apart from
// "malformed data" (Malformed) without relying on silent failure.
type ParseResult[T any] struct {
	Rows        []T
	Diagnostics []Diagnostic
}

// Empty reports whether the stage produced no rows.
func (r ParseResult[T]) Empty() bool {
	return len(r.Rows) == 0
}

// Malformed reports whether the stage produced nothing and complained about it.
func (r ParseResult[T]) Malformed() bool {
	return len(r.Rows) == 0 && len(r.Diagnostics) > 0
}

func (r *ParseResult[T]) addf(line int, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Line: line, Reason: fmt.Sprintf(format, args...)})
}
