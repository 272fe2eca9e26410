package service

import (
	"context"
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

type SlotStatus struct {
	SlotID            string  `json:"slotId"`
	StartTime         string  `json:"startTime"`
	EndTime           string  `json:"endTime"`
	IsAvailable       bool    `json:"isAvailable"`
	Reason            string  `json:"reason"`
	Rate              float64 `json:"rate,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	ReservationID     string  `json:"reservationId,omitempty"`
	ReservationStatus string  `json:"reservationStatus,omitempty"`
}

type AvailabilitySummary struct {
	TotalSlots        int    `json:"totalSlots"`
	AvailableCount    int    `json:"availableCount"`
	UnavailableCount  int    `json:"unavailableCount"`
	IsSpecialDate     bool   `json:"isSpecialDate"`
	SpecialDateReason string `json:"specialDateReason,omitempty"`
	Message           string `json:"message,omitempty"`
}

type DayAvailability struct {
	FieldID          string              `json:"fieldId"`
	Date             string              `json:"date"`
	DayOfWeek        int                 `json:"dayOfWeek"`
	AvailableSlots   []SlotStatus        `json:"availableSlots"`
	UnavailableSlots []SlotStatus        `json:"unavailableSlots"`
	Summary          AvailabilitySummary `json:"summary"`
}

// SlotEnumerator breaks a field's day into available and unavailable slots.
type SlotEnumerator struct {
	detector *ConflictDetector
}

func NewSlotEnumerator(detector *ConflictDetector) *SlotEnumerator {
	return &SlotEnumerator{detector: detector}
}

// Enumerate resolves the effective slots for date and classifies each one.
// Past dates must be rejected by the caller.
func (e *SlotEnumerator) Enumerate(
	ctx context.Context,
	field *models.Field,
	date time.Time,
	sched *models.FieldSchedule,
) (*DayAvailability, error) {
	result := &DayAvailability{
		FieldID:          field.ID,
		Date:             models.DateKey(date),
		DayOfWeek:        int(date.Weekday()),
		AvailableSlots:   []SlotStatus{},
		UnavailableSlots: []SlotStatus{},
	}

	slots, override, ok := sched.SlotsFor(date)
	if !ok {
		result.Summary.Message = fmt.Sprintf("no schedule for %s", date.Weekday())
		return result, nil
	}
	if override != nil {
		result.Summary.IsSpecialDate = true
		result.Summary.SpecialDateReason = override.Reason
	}

	existing, err := e.detector.ActiveOn(ctx, field.ID, result.Date, "")
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		status := SlotStatus{
			SlotID:    slot.ID,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		}
		if !slot.IsAvailable {
			status.Reason = models.ReasonScheduleUnavailable
			result.UnavailableSlots = append(result.UnavailableSlots, status)
			continue
		}

		start, end, err := models.ParseRange(slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %s: %v", domain.ErrInvalidTimeRange, slot.ID, err)
		}
		if conflict := firstOverlap(existing, start, end); conflict != nil {
			status.Reason = models.ReasonBooked
			status.ReservationID = conflict.ID
			status.ReservationStatus = conflict.Status
			result.UnavailableSlots = append(result.UnavailableSlots, status)
			continue
		}

		status.IsAvailable = true
		status.Reason = models.ReasonAvailable
		status.Rate = field.BaseHourlyRate
		if slot.SpecialRate != nil {
			status.Rate = *slot.SpecialRate
		}
		status.Currency = field.Currency
		result.AvailableSlots = append(result.AvailableSlots, status)
	}

	result.Summary.TotalSlots = len(slots)
	result.Summary.AvailableCount = len(result.AvailableSlots)
	result.Summary.UnavailableCount = len(result.UnavailableSlots)
	return result, nil
}
