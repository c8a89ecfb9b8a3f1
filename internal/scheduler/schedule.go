package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next fire time after t. cron.Schedule satisfies it.
type Schedule interface {
	Next(t time.Time) time.Time
}

type intervalSchedule struct {
	interval time.Duration
}

func Every(interval time.Duration) Schedule {
	return intervalSchedule{interval: interval}
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// ParseCron parses a standard five-field cron expression or a descriptor such as @hourly.
func ParseCron(expr string) (Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return sched, nil
}

// HoursToDuration converts the configured interval in hours.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
