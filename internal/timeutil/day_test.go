package timeutil_test

import (
	"testing"
	"time"

	"github.com/AHasnain3/mamamia/internal/timeutil"
)

func TestLocalDayToUTCEastern(t *testing.T) {
	got, err := timeutil.LocalDayToUTC("2024-06-15", "America/New_York")
	if err != nil {
		t.Fatalf("LocalDayToUTC err: %v", err)
	}
	want := time.Date(2024, 6, 15, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected instant: got %s want %s", got, want)
	}
}

func TestLocalDayToUTCSpringForward(t *testing.T) {
	// 2024-03-10 is the US spring-forward date; local midnight is still EST.
	got, err := timeutil.LocalDayToUTC("2024-03-10", "America/New_York")
	if err != nil {
		t.Fatalf("LocalDayToUTC err: %v", err)
	}
	want := time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected instant: got %s want %s", got, want)
	}
}

func TestLocalDayToUTCFallBack(t *testing.T) {
	// 2024-11-03 is the US fall-back date; local midnight is still EDT.
	got, err := timeutil.LocalDayToUTC("2024-11-03", "America/New_York")
	if err != nil {
		t.Fatalf("LocalDayToUTC err: %v", err)
	}
	want := time.Date(2024, 11, 3, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected instant: got %s want %s", got, want)
	}
}

func TestLocalDayToUTCUTC(t *testing.T) {
	got, err := timeutil.LocalDayToUTC("2024-01-01", "UTC")
	if err != nil {
		t.Fatalf("LocalDayToUTC err: %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected instant: got %s want %s", got, want)
	}
}

func TestLocalDayToUTCInvalidTimezone(t *testing.T) {
	if _, err := timeutil.LocalDayToUTC("2024-01-01", "Not/AZone"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLocalDayToUTCInvalidDate(t *testing.T) {
	for _, bad := range []string{"not-a-date", "2024-13-01", "2024-01-40", ""} {
		if _, err := timeutil.LocalDayToUTC(bad, "UTC"); err == nil {
			t.Fatalf("expected error for date %q", bad)
		}
	}
}
