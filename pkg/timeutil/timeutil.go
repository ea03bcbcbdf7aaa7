// Package timeutil provides timezone utilities for the Tokyo timezone (UTC+9).
// Kumotsudai's ranking windows and quiet hours are defined in shrine-local
// time, so all date math goes through here.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// TokyoTZ is the Tokyo timezone (UTC+9, no DST).
// Japan has not observed DST since 1951, so this is constant year-round.
var TokyoTZ = time.FixedZone("Asia/Tokyo", 9*60*60)

// ToTokyo converts a time to Tokyo timezone.
func ToTokyo(t time.Time) time.Time {
	return t.In(TokyoTZ)
}

// DateTime creates a time in Tokyo timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, TokyoTZ)
}

// Ranking window lengths. A window of zero means all-time.
const (
	// WeekWindow covers the trailing 7 days.
	WeekWindow = 7 * 24 * time.Hour
	// MonthWindow covers the trailing 30 days.
	MonthWindow = 30 * 24 * time.Hour
	// QuarterWindow covers the trailing 91 days.
	QuarterWindow = 91 * 24 * time.Hour
)

// WindowStart returns the inclusive lower bound of a trailing window ending
// at now. A zero window returns the zero time (all-time).
func WindowStart(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return now.Add(-window)
}
