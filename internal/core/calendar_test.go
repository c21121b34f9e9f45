package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthRange(t *testing.T) {
	cal := NewCalendar(time.UTC)
	cases := []struct {
		month, year int
		lastDay     int
	}{
		{2, 2024, 29},
		{2, 2023, 28},
		{2, 2000, 29},
		{2, 2100, 28},
		{4, 2024, 30},
		{12, 2024, 31},
		{1, 1970, 31},
	}
	for _, tc := range cases {
		start, end, err := cal.MonthRange(tc.month, tc.year)
		if err != nil {
			t.Fatalf("MonthRange(%d, %d) unexpected error: %v", tc.month, tc.year, err)
		}
		if start.Day() != 1 || start.Hour() != 0 || int(start.Month()) != tc.month {
			t.Fatalf("MonthRange(%d, %d) start = %v", tc.month, tc.year, start)
		}
		if end.Day() != tc.lastDay || end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
			t.Fatalf("MonthRange(%d, %d) end = %v, want last day %d", tc.month, tc.year, end, tc.lastDay)
		}
		if !end.Add(time.Nanosecond).Equal(start.AddDate(0, 1, 0)) {
			t.Fatalf("MonthRange(%d, %d) end is not the last instant of the month", tc.month, tc.year)
		}
	}
}

func TestMonthRangeRejectsOutOfRange(t *testing.T) {
	cal := NewCalendar(time.UTC)
	cases := []struct {
		month, year int
		field       string
	}{
		{0, 2024, "month"},
		{13, 2024, "month"},
		{1, 1969, "year"},
		{1, 2101, "year"},
	}
	for _, tc := range cases {
		_, _, err := cal.MonthRange(tc.month, tc.year)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("MonthRange(%d, %d) expected validation error, got %v", tc.month, tc.year, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("MonthRange(%d, %d) field = %q, want %q", tc.month, tc.year, ve.Field, tc.field)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected errors.Is(err, ErrValidation)")
		}
	}
}

func TestDayRange(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	cal := NewCalendar(loc)

	start, end, err := cal.DayRange("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Location() != loc || start.Day() != 29 || start.Hour() != 0 {
		t.Fatalf("start = %v", start)
	}
	if got := end.Sub(start); got != 24*time.Hour-time.Nanosecond {
		t.Fatalf("day span = %v", got)
	}

	bad := []string{"", "2024-2-29", "2023-02-29", "2024-13-01", "29-02-2024", "2024-02-29T00:00:00Z", "1969-12-31"}
	for _, s := range bad {
		if _, _, err := cal.DayRange(s); !errors.Is(err, ErrValidation) {
			t.Fatalf("DayRange(%q) expected validation error, got %v", s, err)
		}
	}
}

func TestDayKeyOfUsesCalendarLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	cal := NewCalendar(loc)
	// 20:00 UTC on the 1st is already the 2nd in IST.
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := cal.DayKeyOf(ts); got != "2024-03-02" {
		t.Fatalf("DayKeyOf = %q, want 2024-03-02", got)
	}
	if got := cal.StartOfDay(ts); !got.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, loc)) {
		t.Fatalf("StartOfDay = %v", got)
	}
}

func TestParseEntryDate(t *testing.T) {
	cal := NewCalendar(time.UTC)
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-05", "2024-03-05", true},
		{"2024-03-05T18:30:00Z", "2024-03-05", true},
		{"2024-03-05T23:30:00-02:00", "2024-03-06", true},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := cal.ParseEntryDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseEntryDate(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("ParseEntryDate(%q) expected error", tc.in)
			}
			continue
		}
		if key := cal.DayKeyOf(got); string(key) != tc.want {
			t.Fatalf("ParseEntryDate(%q) = %s, want %s", tc.in, key, tc.want)
		}
	}
}
