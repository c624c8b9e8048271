// This file holds one dueness strategy per schedule frequency. A strategy
// decides from the last materialization whether a schedule is due on a day.

package services

import (
	"fmt"
	"time"

	"pecuny/internal/core"
)

// DuenessChecker decides whether a schedule is due at now. lastExecution
// is the zero time when the schedule never produced an entry; every time
// is interpreted in now's location.
type DuenessChecker interface {
	IsDue(lastExecution, now, startDate time.Time) bool
}

// OnceChecker is due only until the first entry exists.
type OnceChecker struct{}

func (OnceChecker) IsDue(lastExecution, _, _ time.Time) bool {
	return lastExecution.IsZero()
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return !core.SameDay(lastExecution, now)
}

// WeeklyChecker is due when 7 or more calendar days passed since the last
// entry.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, now, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return daysBetween(lastExecution.In(now.Location()), now) >= 7
}

// MonthlyChecker is due in a new month once the start date's day is
// reached. Days past the month's end clamp to its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	last := lastExecution.In(now.Location())
	if last.Year() == now.Year() && last.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(startDate.In(now.Location()).Day(), now)
}

// YearlyChecker is due in a new year once the start date's month and day
// are reached.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastExecution, now, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.In(now.Location()).Year() == now.Year() {
		return false
	}

	start := startDate.In(now.Location())
	switch {
	case now.Month() < start.Month():
		return false
	case now.Month() == start.Month():
		return now.Day() >= clampDay(start.Day(), now)
	default:
		return true
	}
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Once:    OnceChecker{},
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the strategy for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker replaces or adds the strategy for a frequency.
// It is not safe to call while a run is in progress.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

func clampDay(day int, in time.Time) int {
	if last := core.LastDayOfMonth(in); day > last {
		return last
	}
	return day
}

// daysBetween counts calendar days from a to b, ignoring clock time and
// daylight saving shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
