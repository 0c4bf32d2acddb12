package domain

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Recife is the civil time zone of every timestamp that reaches the
// aggregator: a fixed UTC-3 offset, no daylight saving.
var Recife = time.FixedZone("America/Recife", -3*60*60)

const (
	// DateLayout formats the date column of every derived table.
	DateLayout = "2006-01-02"
	// TimestampLayout is how raw rainfall and tide timestamps are written to disk.
	TimestampLayout = "2006-01-02 15:04:05"
)

// clock is a package-level time source so tests can freeze "today" via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant in Recife civil time.
func Now() time.Time {
	return clock.Now().In(Recife)
}

// Today returns midnight of the current Recife civil date.
func Today() time.Time {
	return CivilDate(clock.Now())
}

// CivilDate returns midnight of the Recife date that contains t.
func CivilDate(t time.Time) time.Time {
	t = t.In(Recife)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Recife)
}

// ParseDate parses a YYYY-MM-DD date as Recife midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, Recife)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// hourStart truncates t to the start of its hour in t's own location.
// time.Truncate works on absolute time and would misalign non-whole-hour offsets.
func hourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// hourRef renders the canonical HH:00:00 join key for t.
func hourRef(t time.Time) string {
	return fmt.Sprintf("%02d:00:00", t.Hour())
}
