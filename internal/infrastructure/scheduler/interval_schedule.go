package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job on wall-clock boundaries of Interval, so a
// one-minute job fires at :00 of every minute regardless of start time.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an IntervalSchedule. Intervals under one second are raised to one second.
func Every(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the first boundary strictly after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.Interval).Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
