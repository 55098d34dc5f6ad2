package service

import (
	"time"
)

const (
	// DefaultRolloverHour is the local hour at which a new service day starts
	DefaultRolloverHour = 8
	dayKeyLayout        = "2006-01-02"
)

// ServiceDayKey returns the YYYY-MM-DD service day containing t. A service day
// runs from rolloverHour local time until rolloverHour the next day, so 02:00
// belongs to the previous calendar date.
func ServiceDayKey(t time.Time, loc *time.Location, rolloverHour int) string {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	year, month, day := local.Date()
	if local.Hour() < rolloverHour {
		day--
	}
	// time.Date normalizes day 0 to the last day of the previous month
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Format(dayKeyLayout)
}

// ServiceDayStart returns the instant at which the service day containing t began
func ServiceDayStart(t time.Time, loc *time.Location, rolloverHour int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), rolloverHour, 0, 0, 0, loc)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}
