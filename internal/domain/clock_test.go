package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesRecifeDate(t *testing.T) {
	// 01:30 UTC is still the previous evening in Recife.
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.May, 2, 1, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, "2024-05-01", Today().Format(DateLayout))
	assert.Equal(t, 22, Now().Hour())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, Recife, d.Location())

	_, err = ParseDate("01/05/2024")
	require.Error(t, err)
}

func TestHourRef(t *testing.T) {
	assert.Equal(t, "07:00:00", hourRef(time.Date(2024, 1, 1, 7, 59, 0, 0, Recife)))
	assert.Equal(t, "23:00:00", hourRef(time.Date(2024, 1, 1, 23, 0, 0, 0, Recife)))
}
