package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used across storage and the API.
const DateLayout = "2006-01-02"

// ParseClock parses a 24-hour HH:mm string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// ParseRange parses start and end and requires end > start.
func ParseRange(start, end string) (startMin, endMin int, err error) {
	if startMin, err = ParseClock(start); err != nil {
		return 0, 0, err
	}
	if endMin, err = ParseClock(end); err != nil {
		return 0, 0, err
	}
	if endMin <= startMin {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return startMin, endMin, nil
}

// DurationHours returns the fractional hours between two HH:mm values.
func DurationHours(start, end string) (float64, error) {
	s, e, err := ParseRange(start, end)
	if err != nil {
		return 0, err
	}
	return float64(e-s) / 60, nil
}

// ParseDate parses a yyyy-mm-dd calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// CombineDateTime builds the instant for a calendar date and HH:mm in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, d.Location()), nil
}

// LoadLocation loads name, falling back to a fixed UTC+7 zone when the tz
// database is not available on the host.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 7*60*60)
	}
	return loc
}
