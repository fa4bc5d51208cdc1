package model

import (
	"fmt"
	"time"
)

// WeekKey identifies one ISO 8601 week (Monday-start). It is the shared time
// axis for chart snapshots and weather summaries.
type WeekKey struct {
	Year int
	Week int
}

// WeekOf returns the WeekKey of the ISO week containing t.
func WeekOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// ParseWeekKey parses a key in "2006-W02" form (e.g. "2024-W01").
func ParseWeekKey(s string) (WeekKey, error) {
	var k WeekKey
	if _, err := fmt.Sscanf(s, "%d-W%d", &k.Year, &k.Week); err != nil {
		return WeekKey{}, fmt.Errorf("invalid week key '%s': %w", s, err)
	}
	if k.Week < 1 || k.Week > 53 {
		return WeekKey{}, fmt.Errorf("invalid week key '%s': week out of range", s)
	}
	// Week 53 does not exist in every ISO year.
	if WeekOf(k.Monday()) != k {
		return WeekKey{}, fmt.Errorf("invalid week key '%s': no such week in year %d", s, k.Year)
	}
	return k, nil
}

// String renders the key in "2006-W02" form.
func (k WeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

// Monday returns the first day (Monday, UTC midnight) of the ISO week.
func (k WeekKey) Monday() time.Time {
	// January 4th is always inside ISO week 1 of its year.
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := int(jan4.Weekday())
	if offset == 0 { // Sunday
		offset = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-offset)
	return week1Monday.AddDate(0, 0, (k.Week-1)*7)
}

// Sunday returns the last day of the ISO week. Chart providers stamp weekly
// snapshots on this date.
func (k WeekKey) Sunday() time.Time {
	return k.Monday().AddDate(0, 0, 6)
}

// Season returns the meteorological season the week's Monday falls in.
func (k WeekKey) Season() string {
	switch k.Monday().Month() {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// Next returns the following ISO week.
func (k WeekKey) Next() WeekKey {
	return WeekOf(k.Monday().AddDate(0, 0, 7))
}

// Before reports whether k precedes o.
func (k WeekKey) Before(o WeekKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Week < o.Week
}

// WeeksBetween returns the inclusive sequence of weeks from 'from' through 'to'.
// A reversed range yields an empty slice.
func WeeksBetween(from, to WeekKey) []WeekKey {
	if to.Before(from) {
		return nil
	}
	var weeks []WeekKey
	for k := from; ; k = k.Next() {
		weeks = append(weeks, k)
		if k == to {
			break
		}
	}
	return weeks
}
