package report

import (
	"fmt"
	"regexp"
	"time"
)

// weekKeyPattern is the accepted external form. Single-digit weeks must be
// zero-padded; bare "YYYY-W" forms are rejected.
var weekKeyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

const (
	minWeekYear = 2000
	maxWeekYear = 2100
)

// ParseWeekKey validates a "YYYY-WNN" ISO week key and returns its parts.
func ParseWeekKey(key string) (year, week int, err error) {
	m := weekKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeek, key)
	}
	fmt.Sscanf(m[1], "%d", &year)
	fmt.Sscanf(m[2], "%d", &week)
	if year < minWeekYear || year > maxWeekYear {
		return 0, 0, fmt.Errorf("%w: year %d", ErrInvalidWeek, year)
	}
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("%w: week %d", ErrInvalidWeek, week)
	}
	return year, week, nil
}

// FormatWeekKey renders the canonical zero-padded key.
func FormatWeekKey(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekRange returns [monday 00:00 UTC, next monday 00:00 UTC) for an ISO
// week. ISO week 1 is the week containing January 4th.
func WeekRange(year, week int) (from, to time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 { // Sunday is ISO day 7
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	from = week1Monday.AddDate(0, 0, (week-1)*7)
	return from, from.AddDate(0, 0, 7)
}

// PrevWeekKey returns the key of the ISO week immediately before the given
// one, crossing year boundaries correctly.
func PrevWeekKey(year, week int) string {
	from, _ := WeekRange(year, week)
	prevYear, prevWeek := from.AddDate(0, 0, -7).ISOWeek()
	return FormatWeekKey(prevYear, prevWeek)
}
