// Package timeutil provides the calendar math used by the duration reports:
// business-hours interval computation and the rounding rules for expressing
// seconds as hours and days.
package timeutil

import (
	"math"
	"time"
)

// Business hours are fixed at 09:00-17:00 UTC, Monday through Friday.
// No holiday calendar and no per-project timezones; this is a deliberate
// simplification.
const (
	businessDayStartHour = 9
	businessDayEndHour   = 17
)

// BusinessSeconds returns the number of seconds between start and end that
// fall within business hours. Returns 0 when end is not after start.
func BusinessSeconds(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	start = start.UTC()
	end = end.UTC()

	var total float64
	endDay := end.Truncate(24 * time.Hour)
	for day := start.Truncate(24 * time.Hour); !day.After(endDay); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dayStart := day.Add(businessDayStartHour * time.Hour)
		dayEnd := day.Add(businessDayEndHour * time.Hour)

		overlapStart := maxTime(start, dayStart)
		overlapEnd := minTime(end, dayEnd)
		if overlapEnd.After(overlapStart) {
			total += overlapEnd.Sub(overlapStart).Seconds()
		}
	}
	return total
}

// HoursDays expresses a duration in seconds as (hours, days), each rounded
// to two decimal places. Days are derived from the rounded hours value, not
// the raw seconds; downstream consumers depend on that exact rounding.
func HoursDays(seconds float64) (hours, days float64) {
	hours = round2(seconds / 3600)
	days = round2(hours / 24)
	return hours, days
}

// FormatISO renders t as an ISO-8601 UTC timestamp with second precision,
// the format the API expects for time-valued query parameters.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// round2 rounds to two decimals, ties to the even neighbor.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
