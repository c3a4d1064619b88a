// Package timeutil holds the small time/cron helpers shared by the
// scheduler and the bot layer.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultCron is the fallback schedule (midnight) used when a user-supplied
// time string cannot be parsed.
const DefaultCron = "0 0 * * *"

// StampLayout is the timestamp format embedded in artifact file names.
const StampLayout = "2006-01-02_15-04-05"

// ParseHHMM parses a "HH:MM" clock string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// TimeToCron converts a "HH:MM" clock string into a 5-field cron expression
// with day/month/weekday wildcarded, e.g. "23:30" -> "30 23 * * *".
//
// Invalid input never fails: it falls back to DefaultCron (midnight) so a
// misconfigured daily time degrades instead of losing the schedule.
func TimeToCron(s string) string {
	h, m, err := ParseHHMM(s)
	if err != nil {
		return DefaultCron
	}
	return fmt.Sprintf("%d %d * * *", m, h)
}

// Stamp formats t for use in artifact file names.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// DayStart returns midnight of the day containing t, in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
