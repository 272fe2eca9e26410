package service

import (
	"context"
	"fmt"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

// ConflictDetector tests a time range against active reservations.
type ConflictDetector struct {
	repo domain.ReservationRepository
}

func NewConflictDetector(repo domain.ReservationRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// ActiveOn returns pending and confirmed reservations of a field on a date.
func (d *ConflictDetector) ActiveOn(ctx context.Context, fieldID, date, excludeID string) ([]*models.Reservation, error) {
	reservations, err := d.repo.FindReservations(ctx, domain.ReservationFilter{
		FieldID:   fieldID,
		Date:      date,
		Statuses:  models.ActiveStatuses(),
		ExcludeID: excludeID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	return reservations, nil
}

// FindConflict returns the first active reservation overlapping [start,end), or nil.
func (d *ConflictDetector) FindConflict(ctx context.Context, fieldID, date, start, end, excludeID string) (*models.Reservation, error) {
	s, e, err := models.ParseRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	existing, err := d.ActiveOn(ctx, fieldID, date, excludeID)
	if err != nil {
		return nil, err
	}
	return firstOverlap(existing, s, e), nil
}

// IsAvailable reports whether [start,end) is free of active reservations.
func (d *ConflictDetector) IsAvailable(ctx context.Context, fieldID, date, start, end, excludeID string) (bool, error) {
	conflict, err := d.FindConflict(ctx, fieldID, date, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

// firstOverlap applies the half-open rule existing.start < end && existing.end > start.
func firstOverlap(existing []*models.Reservation, start, end int) *models.Reservation {
	for _, r := range existing {
		if !r.IsActive() {
			continue
		}
		rs, re, err := models.ParseRange(r.StartTime, r.EndTime)
		if err != nil {
			continue
		}
		if rs < end && re > start {
			return r
		}
	}
	return nil
}
