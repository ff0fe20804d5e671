// Package analytics holds the pure date and spending computations shared by
// every Finwiz surface: resolving recurring days of month to concrete
// dates and reducing statements into summaries and monthly series.
//
// Nothing in this package performs I/O or keeps state, so every function is
// safe to call from concurrent goroutines.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidArgument is returned for out-of-range days, months or windows.
var ErrInvalidArgument = errors.New("invalid argument")

// daysIn returns the number of days of the given month.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// clampedDate builds year-month-day at midnight, clamping day to the
// month's last day.
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysIn(year, month, loc); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextDayOfMonth returns the earliest date on or after ref's calendar date
// whose day of month is day, clamped to the length of shorter months.
// A candidate equal to ref's date counts.
func NextDayOfMonth(day int, ref time.Time) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day %d out of range [1,31]", ErrInvalidArgument, day)
	}
	today := startOfDay(ref)
	loc := today.Location()

	candidate := clampedDate(today.Year(), today.Month(), day, loc)
	if !candidate.Before(today) {
		return candidate, nil
	}
	// time.Date normalises month 13 to January of the next year.
	first := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, loc)
	return clampedDate(first.Year(), first.Month(), day, loc), nil
}

// NextMonthDay resolves an annual month/day pair, such as a fee date, to its
// next occurrence on or after ref's calendar date.
func NextMonthDay(month, day int, ref time.Time) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %d out of range [1,12]", ErrInvalidArgument, month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day %d out of range [1,31]", ErrInvalidArgument, day)
	}
	today := startOfDay(ref)
	loc := today.Location()

	candidate := clampedDate(today.Year(), time.Month(month), day, loc)
	if !candidate.Before(today) {
		return candidate, nil
	}
	return clampedDate(today.Year()+1, time.Month(month), day, loc), nil
}

// DaysUntil counts whole calendar days from ref's date to target's date.
// The result is negative when target lies in the past.
func DaysUntil(target, ref time.Time) int {
	from := startOfDay(ref)
	to := startOfDay(target.In(from.Location()))
	// Hours divided by 24 and rounded absorbs DST shifts.
	return int(math.Round(to.Sub(from).Hours() / 24))
}
