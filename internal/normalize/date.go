package normalize

import (
	"strings"
	"time"

	"github.com/minhngvu/stocktrace/pkg/logger"
)

// DDMMYYYY is the canonical 8-digit date layout used in lot identity keys.
const DDMMYYYY = "02012006"

// dateLayouts are tried in order for string inputs that are not already
// canonical. Delimited day-first forms come before free-form layouts because
// the source systems are day-first throughout.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// Date canonicalizes a heterogeneous date value to a DDMMYYYY string.
// Supported shapes: time.Time, canonical 8-digit string, slash/dash delimited
// day-first strings, a handful of free-form layouts, and numeric epochs
// (seconds or milliseconds). The second return is false when the input could
// not be parsed; the caller receives today's date and the incident is logged
// as a data-quality event so a fallback is never silently used as a match key.
func Date(v any, now time.Time) (string, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			break
		}
		return d.Format(DDMMYYYY), true
	case *time.Time:
		if d == nil || d.IsZero() {
			break
		}
		return d.Format(DDMMYYYY), true
	case string:
		if s, ok := dateFromString(d); ok {
			return s, true
		}
	case int:
		if s, ok := dateFromEpoch(int64(d)); ok {
			return s, true
		}
	case int64:
		if s, ok := dateFromEpoch(d); ok {
			return s, true
		}
	case float64:
		if s, ok := dateFromEpoch(int64(d)); ok {
			return s, true
		}
	}

	logger.DataQuality("unparseable_date").Interface("value", v).Msg("date fell back to processing date")
	return now.Format(DDMMYYYY), false
}

func dateFromString(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// Already canonical: return unchanged so normalization is idempotent.
	if len(s) == 8 && allDigits(s) {
		if _, err := time.Parse(DDMMYYYY, s); err == nil {
			return s, true
		}
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DDMMYYYY), true
		}
	}
	return "", false
}

// dateFromEpoch accepts unix seconds or milliseconds; values past the year
// 5000 in seconds are assumed to be milliseconds.
func dateFromEpoch(v int64) (string, bool) {
	if v <= 0 {
		return "", false
	}
	const msThreshold = 100_000_000_000
	if v >= msThreshold {
		return time.UnixMilli(v).Format(DDMMYYYY), true
	}
	return time.Unix(v, 0).Format(DDMMYYYY), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// IMD composes the import-date identifier: the canonical date string, suffixed
// with a 1-2 digit sequence copied from the batch number if and only if the
// batch number begins with that exact date followed by only digits. The guard
// keeps unrelated batch codes from masquerading as same-day sequence numbers.
func IMD(dateValue any, batchNumber string, now time.Time) (string, bool) {
	canon, ok := Date(dateValue, now)

	batch := strings.TrimSpace(batchNumber)
	if rest, found := strings.CutPrefix(batch, canon); found {
		if len(rest) >= 1 && len(rest) <= 2 && allDigits(rest) {
			return canon + rest, ok
		}
	}
	return canon, ok
}

// ValidIMD reports whether s is a canonical IMD: a valid DDMMYYYY date,
// optionally followed by a 1-2 digit sequence suffix.
func ValidIMD(s string) bool {
	if len(s) < 8 || len(s) > 10 || !allDigits(s) {
		return false
	}
	_, err := time.Parse(DDMMYYYY, s[:8])
	return err == nil
}

// IMDDate parses the date part of an IMD back to a time.Time (midnight local).
func IMDDate(imd string) (time.Time, bool) {
	if !ValidIMD(imd) {
		return time.Time{}, false
	}
	t, err := time.Parse(DDMMYYYY, imd[:8])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
