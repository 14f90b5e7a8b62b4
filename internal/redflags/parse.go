package redflags

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are the accepted row date formats, tried in order. Two-digit
// years follow Go's 69-99 => 19xx mapping, which is what the upstream
// export intends (the 12/31/99 end-draft placeholder is 1999).
var dateLayouts = []string{
	"1/2/06",
	"1/2/2006",
	"2006-01-02",
	"2006/01/02",
}

// DateTimeLayout is the date-with-time form that appears only in raw
// extended exports before normalization.
const DateTimeLayout = "2006-01-02 15:04:05"

// nullWords are cell values treated as "no date at all" rather than a
// malformed one.
var nullWords = map[string]bool{"": true, "nan": true, "nat": true, "none": true}

// ParseDate parses a row date cell. ok is false for blank, null-ish, or
// unrecognized values.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if nullWords[strings.ToLower(s)] {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateTime parses a cell that may carry a time-of-day component, as
// the raw extended export does before normalization.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if nullWords[strings.ToLower(s)] {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateTimeLayout, s); err == nil {
		return t, true
	}
	return ParseDate(s)
}

// ParseCurrency parses a currency cell, tolerating dollar signs, thousands
// separators and stray quotes. ok is false when nothing numeric remains.
func ParseCurrency(s string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", `"`, "").Replace(s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MonthKey formats a time as the calendar year-month key used by the
// coverage scan, e.g. "2025-03".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
