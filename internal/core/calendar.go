package core

import (
	"fmt"
	"time"
)

const (
	// DayKeyLayout is the canonical YYYY-MM-DD form of a calendar day.
	DayKeyLayout = "2006-01-02"

	MinYear = 1970
	MaxYear = 2100
)

// DayKey identifies one calendar day, e.g. "2024-03-05".
type DayKey string

func (k DayKey) String() string { return string(k) }

// Calendar computes day and month boundaries in a fixed location.
// The zero value uses time.Local.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar bound to loc (time.Local when nil).
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// ValidateMonthYear checks month in [1,12] and year in [MinYear,MaxYear].
func ValidateMonthYear(month, year int) error {
	if month < 1 || month > 12 {
		return NewValidationError("month", "must be between 1 and 12")
	}
	if year < MinYear || year > MaxYear {
		return NewValidationError("year", fmt.Sprintf("must be between %d and %d", MinYear, MaxYear))
	}
	return nil
}

// MonthRange returns the first instant of day 1 and the last instant of the
// month's final day.
func (c Calendar) MonthRange(month, year int) (time.Time, time.Time, error) {
	if err := ValidateMonthYear(month, year); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, c.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end, nil
}

// ParseDayKey validates s as a real YYYY-MM-DD calendar date.
func (c Calendar) ParseDayKey(s string) (DayKey, time.Time, error) {
	if len(s) != len(DayKeyLayout) {
		return "", time.Time{}, NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(DayKeyLayout, s, c.Location())
	if err != nil {
		return "", time.Time{}, NewValidationError("date", "must be a valid YYYY-MM-DD date")
	}
	if t.Year() < MinYear || t.Year() > MaxYear {
		return "", time.Time{}, NewValidationError("date", fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear))
	}
	return DayKey(s), t, nil
}

// DayRange returns the first and last instant of the given day.
func (c Calendar) DayRange(key string) (time.Time, time.Time, error) {
	_, start, err := c.ParseDayKey(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end, nil
}

// StartOfDay truncates t to midnight of its calendar day in this location.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// DayKeyOf returns the calendar day containing t.
func (c Calendar) DayKeyOf(t time.Time) DayKey {
	return DayKey(t.In(c.Location()).Format(DayKeyLayout))
}

// ParseEntryDate accepts a YYYY-MM-DD day or an RFC 3339 timestamp and
// returns the start of the calendar day it falls on.
func (c Calendar) ParseEntryDate(s string) (time.Time, error) {
	if _, t, err := c.ParseDayKey(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", "must be YYYY-MM-DD or an RFC 3339 timestamp")
	}
	day := c.StartOfDay(t)
	if day.Year() < MinYear || day.Year() > MaxYear {
		return time.Time{}, NewValidationError("date", fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear))
	}
	return day, nil
}

// MonthOf returns the (month, year) containing t.
func (c Calendar) MonthOf(t time.Time) (int, int) {
	t = t.In(c.Location())
	return int(t.Month()), t.Year()
}
