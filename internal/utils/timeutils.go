package utils

import "time"

// DayLayout formats UTC calendar days used as bucket keys.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar date of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// StartOfDayUTC truncates t to midnight UTC.
func StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysAgo returns now minus the given number of whole days.
func DaysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// HoursBetween returns the absolute number of hours between two timestamps.
func HoursBetween(start, end time.Time) float64 {
	if end.Before(start) {
		start, end = end, start
	}
	return end.Sub(start).Hours()
}
