// Package timeutil provides timezone and calendar helpers for training schedules.
// Batches run in Western Indonesia Time (UTC+7, no DST); timestamps are stored
// in UTC and converted only for calendar math and display.
package timeutil

import (
	"time"
)

// JakartaTZ is Western Indonesia Time (UTC+7).
var JakartaTZ = time.FixedZone("Asia/Jakarta", 7*60*60)

// Now returns the current time in Jakarta timezone.
func Now() time.Time {
	return time.Now().In(JakartaTZ)
}

// ToLocal converts a time to Jakarta timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(JakartaTZ)
}

// Date creates a calendar date (midnight UTC). Batch start and end dates use
// this representation so that they compare independently of the server zone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the Jakarta calendar date of t as a Date.
func DateOf(t time.Time) time.Time {
	l := ToLocal(t)
	return Date(l.Year(), l.Month(), l.Day())
}

// DaysBetween returns the signed number of whole calendar days from d1 to d2.
// Both arguments are expected to be Dates.
func DaysBetween(d1, d2 time.Time) int {
	return int(d2.Sub(d1).Hours() / 24)
}

// MinTime returns the earlier of two times.
func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxTime returns the later of two times.
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatLocal formats a time in Jakarta timezone with the given layout.
func FormatLocal(t time.Time, layout string) string {
	return ToLocal(t).Format(layout)
}

// FormatDateTimeStr formats a time as datetime string in Jakarta timezone.
func FormatDateTimeStr(t time.Time) string {
	return FormatLocal(t, FormatDateTimeSeconds)
}

// ParseDate parses a calendar date (YYYY-MM-DD).
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}
