package models

import (
	"time"
)

// monthRange returns the inclusive start and exclusive end of a calendar
// month in the given timezone.
func monthRange(year int, month int, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start, end, nil
}

// previousPeriod steps one month back, wrapping January into December of
// the prior year.
func previousPeriod(year int, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
