package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func TestDate_SupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"time.Time", time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), "02012024"},
		{"canonical string", "05032024", "05032024"},
		{"slash delimited", "05/03/2024", "05032024"},
		{"slash single digit", "5/3/2024", "05032024"},
		{"dash delimited", "05-03-2024", "05032024"},
		{"iso date", "2024-03-05", "05032024"},
		{"rfc3339", "2024-03-05T09:30:00Z", "05032024"},
		{"datetime", "2024-03-05 09:30:00", "05032024"},
		{"epoch seconds", int64(1709632800), "05032024"}, // 2024-03-05 UTC
		{"epoch millis", int64(1709632800000), "05032024"},
		{"whitespace", "  05032024  ", "05032024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in, testNow)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_IdempotentOnCanonical(t *testing.T) {
	first, ok := Date("28022024", testNow)
	require.True(t, ok)
	second, ok := Date(first, testNow)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestDate_UnparseableFallsBackToProcessingDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"garbage string", "not a date"},
		{"invalid canonical", "99999999"},
		{"empty string", ""},
		{"zero time", time.Time{}},
		{"nil", nil},
		{"negative epoch", int64(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in, testNow)
			assert.False(t, ok, "fallback must be reported, never a silent match key")
			assert.Equal(t, "15062024", got)
		})
	}
}

func TestIMD_SuffixOnlyFromMatchingBatchNumber(t *testing.T) {
	tests := []struct {
		name  string
		date  any
		batch string
		want  string
	}{
		{"no batch", "05032024", "", "05032024"},
		{"one digit suffix", "05032024", "050320242", "050320242"},
		{"two digit suffix", "05032024", "0503202412", "0503202412"},
		{"three digit tail rejected", "05032024", "05032024123", "05032024"},
		{"non-digit tail rejected", "05032024", "05032024A1", "05032024"},
		{"unrelated batch code", "05032024", "LOT-9981", "05032024"},
		{"batch for another day", "05032024", "060320241", "05032024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IMD(tt.date, tt.batch, testNow)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidIMD(t *testing.T) {
	assert.True(t, ValidIMD("05032024"))
	assert.True(t, ValidIMD("050320241"))
	assert.True(t, ValidIMD("0503202412"))
	assert.False(t, ValidIMD("99999999"))
	assert.False(t, ValidIMD("05032024123"))
	assert.False(t, ValidIMD("0503202"))
	assert.False(t, ValidIMD("05/03/24"))
	assert.False(t, ValidIMD(""))
}

func TestIMDDate(t *testing.T) {
	d, ok := IMDDate("050320241")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	_, ok = IMDDate("bogus")
	assert.False(t, ok)
}
