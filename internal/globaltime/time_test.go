package globaltime

import (
	"testing"
	"time"
)

func TestDayBounds(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	start, end := DayBounds(time.Date(2026, 3, 2, 1, 30, 0, 0, loc))

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("unexpected start: %s", start)
	}
	if !end.Equal(wantStart.Add(24 * time.Hour)) {
		t.Fatalf("unexpected end: %s", end)
	}
}

func TestSetMockTimePinsToday(t *testing.T) {
	pinned := time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)
	SetMockTime(pinned)
	defer ResetTime()

	if got := UTC(); !got.Equal(pinned) {
		t.Fatalf("expected pinned clock, got %s", got)
	}
	start, _ := Today()
	if start.Day() != 17 {
		t.Fatalf("unexpected day start: %s", start)
	}
}
