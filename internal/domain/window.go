package domain

import (
	"fmt"
	"time"
)

// TimeWindow is a closed interval of time with both endpoints in UTC.
type TimeWindow struct {
	Since time.Time
	Until time.Time
}

// NewTimeWindow normalizes both endpoints to UTC and rejects inverted windows.
func NewTimeWindow(since, until time.Time) (TimeWindow, error) {
	since = since.UTC()
	until = until.UTC()
	if until.Before(since) {
		return TimeWindow{}, fmt.Errorf("until date %s is before since date %s",
			until.Format("2006-01-02"), since.Format("2006-01-02"))
	}
	return TimeWindow{Since: since, Until: until}, nil
}

// Days returns the window length in fractional days.
func (w TimeWindow) Days() float64 {
	return w.Until.Sub(w.Since).Hours() / 24
}

// userTimeLayouts are the formats accepted for --since/--until values.
// Layouts without a zone are interpreted as UTC.
var userTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseUserTime parses a human-supplied date or datetime and normalizes it
// to UTC, assuming UTC when no timezone is present.
func ParseUserTime(s string) (time.Time, error) {
	for _, layout := range userTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (expected e.g. 2006-01-02)", s)
}

// ResolveWindow builds the reporting window from the --since/--until/--days
// flag trio: an empty since falls back to now minus days, an empty until
// falls back to now.
func ResolveWindow(sinceStr, untilStr string, days int, now time.Time) (TimeWindow, error) {
	now = now.UTC()
	since := now.AddDate(0, 0, -days)
	if sinceStr != "" {
		t, err := ParseUserTime(sinceStr)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("invalid --since: %w", err)
		}
		since = t
	}
	until := now
	if untilStr != "" {
		t, err := ParseUserTime(untilStr)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("invalid --until: %w", err)
		}
		until = t
	}
	return NewTimeWindow(since, until)
}
