package core

import (
	"strings"
	"time"
)

// dateLayouts are tried in order by ParseDate; the first successful parse wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02.01.2006",
	"2006.01.02",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses ISO-8601 timestamps with or without zone and the common
// day-first, year-first and US date formats. Dates without zone are UTC.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{Field: "date", Value: s, Reason: "date format not recognized"}
}

// DayOf truncates t to midnight in t's location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LastDayOfMonth returns the number of days in t's month.
func LastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
