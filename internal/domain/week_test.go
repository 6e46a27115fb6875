package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestWeekRange(t *testing.T) {
	monday := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	nextMonday := monday.AddDate(0, 0, 7)

	cases := []struct {
		name string
		now  time.Time
	}{
		{name: "monday midnight", now: monday},
		{name: "wednesday noon", now: time.Date(2024, time.June, 12, 12, 30, 0, 0, time.UTC)},
		{name: "sunday late", now: time.Date(2024, time.June, 16, 23, 59, 59, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := domain.WeekRange(tc.now)
			if !start.Equal(monday) || !end.Equal(nextMonday) {
				t.Fatalf("WeekRange(%s) = [%s, %s)", tc.now, start, end)
			}
		})
	}
}

func TestWeekRange_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	now := time.Date(2024, time.June, 10, 0, 30, 0, 0, loc)

	start, _ := domain.WeekRange(now)
	if start.Location() != loc || start.Day() != 10 {
		t.Fatalf("unexpected week start %s", start)
	}
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2024, time.December, 31, 18, 0, 0, 0, time.UTC)
	start, end := domain.DayBounds(at)
	if !start.Equal(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %s", start)
	}
	if !end.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %s", end)
	}
}
