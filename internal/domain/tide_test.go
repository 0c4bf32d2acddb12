package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTide_SemicolonCommaDecimal(t *testing.T) {
	res := NormalizeTide(strings.NewReader("Hora_Exata;Altura_m\n2024-01-01 10:00:00;1,23\n"))

	require.Len(t, res.Rows, 1)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, "2024-01-01", res.Rows[0].Date)
	assert.Equal(t, "10:00:00", res.Rows[0].HourRef)
	assert.Equal(t, 1.23, res.Rows[0].AM)
}

func TestNormalizeTide_CommaDotDecimal(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"canonical", "datahora,AM"},
		{"altura", "datahora,altura"},
		{"mixed case", "DataHora,Am"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NormalizeTide(strings.NewReader(tt.header + "\n2024-03-05 14:00:00,0.87\n"))

			require.Len(t, res.Rows, 1)
			assert.Equal(t, "2024-03-05", res.Rows[0].Date)
			assert.Equal(t, "14:00:00", res.Rows[0].HourRef)
			assert.Equal(t, 0.87, res.Rows[0].AM)
		})
	}
}

func TestNormalizeTide_LastDuplicateWins(t *testing.T) {
	input := "datahora,AM\n" +
		"2024-01-01 10:00:00,1.0\n" +
		"2024-01-01 10:30:00,2.0\n"
	res := NormalizeTide(strings.NewReader(input))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 2.0, res.Rows[0].AM)
}

func TestNormalizeTide_DiscardsMarkerLines(t *testing.T) {
	input := "<<<<<<< HEAD\n" +
		"Hora_Exata;Altura_m\n" +
		"2024-01-01 09:00:00;0,50\n" +
		"=======\n" +
		"2024-01-01 10:00:00;0,75\n" +
		">>>>>>> ff542cf2 (.)\n"
	res := NormalizeTide(strings.NewReader(input))

	require.Len(t, res.Rows, 2)
	assert.Equal(t, 0.5, res.Rows[0].AM)
	assert.Equal(t, 0.75, res.Rows[1].AM)
	assert.Len(t, res.Diagnostics, 3)
}

func TestNormalizeTide_DropsUnparseableTimestamps(t *testing.T) {
	input := "datahora,AM\n" +
		"not-a-date,1.0\n" +
		"2024-01-01 11:00:00,1.5\n"
	res := NormalizeTide(strings.NewReader(input))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "11:00:00", res.Rows[0].HourRef)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
}

func TestNormalizeTide_NonNumericHeightKeptAsNaN(t *testing.T) {
	res := NormalizeTide(strings.NewReader("datahora,AM\n2024-01-01 11:00:00,n/a\n"))

	require.Len(t, res.Rows, 1)
	assert.True(t, math.IsNaN(res.Rows[0].AM))
	assert.Len(t, res.Diagnostics, 1)
}

func TestNormalizeTide_TimestampResidue(t *testing.T) {
	res := NormalizeTide(strings.NewReader("Hora_Exata;Altura_m\n\"2024-01-01 10:00:00,0\";1,10\n"))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "10:00:00", res.Rows[0].HourRef)
	assert.Equal(t, 1.1, res.Rows[0].AM)
}

func TestNormalizeTide_SortedByHour(t *testing.T) {
	input := "datahora,AM\n" +
		"2024-01-01 12:00:00,3\n" +
		"2024-01-01 08:00:00,1\n"
	res := NormalizeTide(strings.NewReader(input))

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "08:00:00", res.Rows[0].HourRef)
	assert.Equal(t, "12:00:00", res.Rows[1].HourRef)
}

func TestNormalizeTide_Malformed(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		res := NormalizeTide(strings.NewReader("\n\n"))
		assert.True(t, res.Empty())
		assert.True(t, res.Malformed())
	})

	t.Run("unknown columns", func(t *testing.T) {
		res := NormalizeTide(strings.NewReader("when,height\n2024-01-01 10:00:00,1\n"))
		assert.True(t, res.Malformed())
		assert.Contains(t, res.Diagnostics[0].Reason, "lacks a timestamp or height column")
	})

	t.Run("header only", func(t *testing.T) {
		res := NormalizeTide(strings.NewReader("datahora,AM\n"))
		assert.True(t, res.Empty())
		assert.False(t, res.Malformed())
	})
}

func TestNormalizeTide_CRLFAndBOM(t *testing.T) {
	res := NormalizeTide(strings.NewReader("\ufeffHora_Exata;Altura_m\r\n2024-01-01 10:00:00;1,5\r\n"))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1.5, res.Rows[0].AM)
}

func TestNormalizeTide_OffsetTimestampsUseRecifeHours(t *testing.T) {
	res := NormalizeTide(strings.NewReader("datahora,AM\n2024-05-01T02:00:00Z,1.1\n"))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2024-04-30", res.Rows[0].Date)
	assert.Equal(t, "23:00:00", res.Rows[0].HourRef)
	assert.Equal(t, Recife, res.Rows[0].Hour.Location())
}
