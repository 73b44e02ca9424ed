// Package calendar holds the date arithmetic shared by the household jobs.
// Dates are civil days: midnight UTC values built from the local wall clock.
package calendar

import (
	"fmt"
	"time"
)

// Day returns t's calendar date in t's own location as a UTC midnight value.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key formats a day as YYYY-MM-DD.
func Key(t time.Time) string { return t.Format(time.DateOnly) }

// Parse reads YYYY-MM-DD.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: want YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// AddDays adds n civil days.
func AddDays(t time.Time, n int) time.Time { return Day(t).AddDate(0, 0, n) }

// LastWeekdayOnOrBefore returns the most recent wd on or before t.
func LastWeekdayOnOrBefore(t time.Time, wd time.Weekday) time.Time {
	t = Day(t)
	back := (int(t.Weekday()) - int(wd) + 7) % 7
	return t.AddDate(0, 0, -back)
}

// AddMonths adds n months, clamping to the last day of the target month
// (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	t = Day(t)
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsFirstWeekdayOfMonth reports whether t falls on wd within the first
// seven days of its month.
func IsFirstWeekdayOfMonth(t time.Time, wd time.Weekday) bool {
	return t.Weekday() == wd && t.Day() <= 7
}

// MonthDay is a recurring yearly date.
type MonthDay struct {
	Month time.Month
	Day   int
}

func MonthDayOf(t time.Time) MonthDay { return MonthDay{Month: t.Month(), Day: t.Day()} }

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day) }

// ParseMonthDay reads MM-DD.
func ParseMonthDay(s string) (MonthDay, error) {
	var md MonthDay
	var m int
	if _, err := fmt.Sscanf(s, "%02d-%02d", &m, &md.Day); err != nil || m < 1 || m > 12 {
		return MonthDay{}, fmt.Errorf("calendar: want MM-DD, got %q", s)
	}
	md.Month = time.Month(m)
	if md.Day < 1 || md.Day > DaysIn(2000, md.Month) {
		return MonthDay{}, fmt.Errorf("calendar: want MM-DD, got %q", s)
	}
	return md, nil
}

// In returns the occurrence of md in year y. Feb 29 maps to Feb 28 when y is
// not a leap year.
func (md MonthDay) In(y int) time.Time {
	d := md.Day
	if last := DaysIn(y, md.Month); d > last {
		d = last
	}
	return time.Date(y, md.Month, d, 0, 0, 0, 0, time.UTC)
}

// Next returns the first occurrence of md on or after today.
func (md MonthDay) Next(today time.Time) time.Time {
	today = Day(today)
	if at := md.In(today.Year()); !at.Before(today) {
		return at
	}
	return md.In(today.Year() + 1)
}

// Ordinal is the position of md within a non-leap year ordering, with Feb 29
// sorted right after Feb 28.
func (md MonthDay) Ordinal() int { return int(md.Month)*32 + md.Day }

// NextBirthday returns the next occurrence of birth on or after today and the
// age reached on that day.
func NextBirthday(birth, today time.Time) (time.Time, int) {
	at := MonthDayOf(birth).Next(today)
	return at, at.Year() - birth.Year()
}
