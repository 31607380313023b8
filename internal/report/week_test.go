package report

import (
	"errors"
	"testing"
	"time"
)

func TestParseWeekKey(t *testing.T) {
	tests := []struct {
		key      string
		year     int
		week     int
		wantErr  bool
	}{
		{"2025-W02", 2025, 2, false},
		{"2000-W01", 2000, 1, false},
		{"2100-W53", 2100, 53, false},
		{"2024-W00", 0, 0, true},
		{"2024-W54", 0, 0, true},
		{"1999-W10", 0, 0, true},
		{"2101-W10", 0, 0, true},
		{"2024-W5", 0, 0, true},  // not zero-padded
		{"2024-5", 0, 0, true},   // missing W
		{"2024W05", 0, 0, true},  // missing dash
		{"garbage", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		year, week, err := ParseWeekKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidWeek) {
				t.Errorf("ParseWeekKey(%q) err = %v, want ErrInvalidWeek", tt.key, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWeekKey(%q) unexpected error %v", tt.key, err)
			continue
		}
		if year != tt.year || week != tt.week {
			t.Errorf("ParseWeekKey(%q) = %d, %d, want %d, %d", tt.key, year, week, tt.year, tt.week)
		}
	}
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		year, week int
		from       string
	}{
		{2025, 2, "2025-01-06"},  // Jan 4 2025 is a Saturday
		{2025, 1, "2024-12-30"},  // week 1 starts in the prior calendar year
		{2024, 1, "2024-01-01"},  // Jan 1 2024 is a Monday
		{2026, 53, "2026-12-28"}, // 2026 ends mid ISO week
	}
	for _, tt := range tests {
		from, to := WeekRange(tt.year, tt.week)
		if got := from.Format("2006-01-02"); got != tt.from {
			t.Errorf("WeekRange(%d, %d) from = %s, want %s", tt.year, tt.week, got, tt.from)
		}
		if to.Sub(from) != 7*24*time.Hour {
			t.Errorf("WeekRange(%d, %d) span = %v, want 168h", tt.year, tt.week, to.Sub(from))
		}
		if from.Weekday() != time.Monday {
			t.Errorf("WeekRange(%d, %d) starts on %v, want Monday", tt.year, tt.week, from.Weekday())
		}
	}
}

func TestWeekRangeRoundTrips(t *testing.T) {
	// Every day inside the range must report the same ISO week.
	from, to := WeekRange(2025, 10)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		year, week := d.ISOWeek()
		if year != 2025 || week != 10 {
			t.Errorf("%s reports ISO week %d-W%02d, want 2025-W10", d.Format("2006-01-02"), year, week)
		}
	}
}

func TestPrevWeekKey(t *testing.T) {
	tests := []struct {
		year, week int
		want       string
	}{
		{2025, 2, "2025-W01"},
		{2025, 1, "2024-W52"},
		{2021, 1, "2020-W53"}, // 2020 is a 53-week ISO year
	}
	for _, tt := range tests {
		if got := PrevWeekKey(tt.year, tt.week); got != tt.want {
			t.Errorf("PrevWeekKey(%d, %d) = %s, want %s", tt.year, tt.week, got, tt.want)
		}
	}
}
