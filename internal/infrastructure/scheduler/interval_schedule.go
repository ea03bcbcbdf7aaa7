package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule runs a job once a day at a fixed local time.
type DailySchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// NewDailySchedule creates a schedule that fires at hour:minute in loc.
func NewDailySchedule(hour, minute int, loc *time.Location) *DailySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &DailySchedule{Hour: hour, Minute: minute, Location: loc}
}

// Next returns the next occurrence of the configured wall-clock time.
func (s *DailySchedule) Next(t time.Time) time.Time {
	local := t.In(s.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily %02d:%02d %s", s.Hour, s.Minute, s.Location.String())
}
