// Package timeutil converts patient-local calendar days into the canonical
// UTC instants used as session partition keys.
package timeutil

import (
	"fmt"
	"time"
)

// LocalDayToUTC resolves a "YYYY-MM-DD" calendar date in an IANA timezone to
// the UTC instant of that date's local midnight. The offset is computed at the
// naive UTC guess, reapplied, and checked once more in case the correction
// itself crossed a DST boundary. Stored day keys depend on this exact
// sequence, so the algorithm must not change.
func LocalDayToUTC(ymd, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	var y, m, d int
	if _, err := fmt.Sscanf(ymd, "%d-%d-%d", &y, &m, &d); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", ymd, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("invalid date %q", ymd)
	}

	guess := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)

	offset1 := zoneOffset(guess, loc)
	result := guess.Add(-time.Duration(offset1) * time.Second)

	offset2 := zoneOffset(result, loc)
	if offset2 != offset1 {
		result = guess.Add(-time.Duration(offset2) * time.Second)
	}
	return result, nil
}

// zoneOffset returns the zone's UTC offset in seconds at the given instant.
func zoneOffset(t time.Time, loc *time.Location) int {
	_, offset := t.In(loc).Zone()
	return offset
}
