package service

import (
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

// RecurrenceRequest bounds a series of candidate dates.
type RecurrenceRequest struct {
	Start          time.Time
	End            *time.Time
	DayOfWeek      int
	Pattern        string
	MaxOccurrences int
}

func ValidatePattern(pattern string) error {
	switch pattern {
	case models.RecurrenceWeekly, models.RecurrenceBiweekly, models.RecurrenceMonthly:
		return nil
	}
	return fmt.Errorf("%w: unknown pattern %q", domain.ErrInvalidRecurrence, pattern)
}

// NextDate advances current by one step of pattern. Monthly steps land on
// anchorDay, clamped to the last day of the target month, so Feb 28 of a
// series anchored on the 31st moves to Mar 31.
func NextDate(current time.Time, anchorDay int, pattern string) (time.Time, error) {
	switch pattern {
	case models.RecurrenceWeekly:
		return current.AddDate(0, 0, 7), nil
	case models.RecurrenceBiweekly:
		return current.AddDate(0, 0, 14), nil
	case models.RecurrenceMonthly:
		return addMonthsClamped(current, anchorDay, 1), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown pattern %q", domain.ErrInvalidRecurrence, pattern)
}

// GenerateDates moves Start forward to the first DayOfWeek and yields dates
// while they are not after End and fewer than MaxOccurrences were produced.
// Monthly series stay anchored on the first date's day of month, so a series
// starting Jan 31 continues Feb 28, Mar 31.
func GenerateDates(req RecurrenceRequest) ([]time.Time, error) {
	if err := ValidatePattern(req.Pattern); err != nil {
		return nil, err
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return nil, fmt.Errorf("%w: day of week %d", domain.ErrInvalidRecurrence, req.DayOfWeek)
	}
	limit := req.MaxOccurrences
	if limit <= 0 {
		limit = models.DefaultMaxOccurrences
	}

	first := req.Start
	for int(first.Weekday()) != req.DayOfWeek {
		first = first.AddDate(0, 0, 1)
	}

	var dates []time.Time
	for date := first; len(dates) < limit; {
		if req.End != nil && date.After(*req.End) {
			break
		}
		dates = append(dates, date)

		next, err := NextDate(date, first.Day(), req.Pattern)
		if err != nil {
			return nil, err
		}
		date = next
	}
	return dates, nil
}

func addMonthsClamped(t time.Time, anchorDay, months int) time.Time {
	y, m, _ := t.Date()
	target := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(target.Year(), target.Month(), t.Location())
	day := anchorDay
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
