package availability

import (
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

const (
	DefaultWindowDays   = 10
	DefaultLookbackDays = 2
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the first date as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format(schedule.DateLayout) }

// EndDate returns the last date as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format(schedule.DateLayout) }

// ComputeWindow returns the availability window for a lookup made on today.
// Without a preferred date the window starts tomorrow; with one it starts
// lookback days before the preferred date but never before today. An
// unparseable preferred date falls back to tomorrow.
func ComputeWindow(today time.Time, preferredDate string, days, lookback int) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	if lookback < 0 {
		lookback = DefaultLookbackDays
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	start := day.AddDate(0, 0, 1)
	if preferredDate != "" {
		if preferred, err := schedule.ParseDate(preferredDate); err == nil {
			start = preferred.AddDate(0, 0, -lookback)
			if start.Before(day) {
				start = day
			}
		}
	}
	return Window{Start: start, End: start.AddDate(0, 0, days-1)}
}
