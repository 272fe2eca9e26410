package service

import (
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

// MatchReferees returns active referees with an available window on date's
// weekday that fully contains [start,end). Directory order is preserved.
func MatchReferees(staff []*models.StaffMember, date time.Time, start, end string) ([]*models.StaffMember, error) {
	s, e, err := models.ParseRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	weekday := int(date.Weekday())

	var matched []*models.StaffMember
	for _, member := range staff {
		if member.Role != models.StaffRoleReferee || member.Status != models.StaffStatusActive {
			continue
		}
		if coversRange(member.Availability, weekday, s, e) {
			matched = append(matched, member)
		}
	}
	return matched, nil
}

func coversRange(windows []models.AvailabilityWindow, weekday, start, end int) bool {
	for _, w := range windows {
		if !w.IsAvailable || w.DayOfWeek != weekday {
			continue
		}
		ws, we, err := models.ParseRange(w.StartTime, w.EndTime)
		if err != nil {
			continue
		}
		if ws <= start && we >= end {
			return true
		}
	}
	return false
}

// pickReferees takes the first n matches.
func pickReferees(matched []*models.StaffMember, n int) []*models.StaffMember {
	if n <= 0 {
		return nil
	}
	if n > len(matched) {
		n = len(matched)
	}
	return matched[:n]
}
