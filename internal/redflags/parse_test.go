package redflags

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"two digit year", "1/15/25", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"four digit year", "1/15/2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"iso dashes", "2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"iso slashes", "2025/03/01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"end draft placeholder is 1999", "12/31/99", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"surrounding spaces", "  1/15/2025  ", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"empty", "", time.Time{}, false},
		{"nan", "NaN", time.Time{}, false},
		{"nat", "NaT", time.Time{}, false},
		{"none", "None", time.Time{}, false},
		{"garbage", "not a date", time.Time{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, got.Equal(tc.want), "got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseDateTime(t *testing.T) {
	got, ok := ParseDateTime("2025-03-01 14:22:05")
	assert.True(t, ok)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.March, got.Month())

	// Falls back to plain date forms.
	got, ok = ParseDateTime("3/1/2025")
	assert.True(t, ok)
	assert.Equal(t, 1, got.Day())

	_, ok = ParseDateTime("nat")
	assert.False(t, ok)
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"600", "600", true},
		{"$600.00", "600", true},
		{"$1,234.56", "1234.56", true},
		{`"450"`, "450", true},
		{"-50.25", "-50.25", true},
		{"  $75  ", "75", true},
		{"", "", false},
		{"$", "", false},
		{"abc", "", false},
	}

	for _, tc := range tests {
		got, ok := ParseCurrency(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			want, _ := decimal.NewFromString(tc.want)
			assert.True(t, got.Equal(want), "input %q: got %s want %s", tc.input, got, want)
		}
	}
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2025-03", MonthKey(time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-11", MonthKey(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)))
}
