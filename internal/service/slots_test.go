package service

import (
	"context"
	"testing"

	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateTemplateDay(t *testing.T) {
	booked := existingReservation("2026-03-09", "08:00", "09:00", models.StatusConfirmed)
	booked.ID = "res-1"
	detector := NewConflictDetector(newFakeRepo(booked))
	enumerator := NewSlotEnumerator(detector)

	got, err := enumerator.Enumerate(context.Background(), testField(), day(t, "2026-03-09"), testSchedule())
	require.NoError(t, err)

	assert.Equal(t, 1, got.DayOfWeek)
	assert.Equal(t, "2026-03-09", got.Date)
	assert.Equal(t, 4, got.Summary.TotalSlots)
	assert.Equal(t, got.Summary.TotalSlots, got.Summary.AvailableCount+got.Summary.UnavailableCount)
	assert.False(t, got.Summary.IsSpecialDate)

	require.Len(t, got.AvailableSlots, 2)
	assert.Equal(t, "10:00", got.AvailableSlots[0].StartTime)
	assert.Equal(t, 10000.0, got.AvailableSlots[0].Rate)
	assert.Equal(t, "18:00", got.AvailableSlots[1].StartTime)
	assert.Equal(t, 15000.0, got.AvailableSlots[1].Rate)

	require.Len(t, got.UnavailableSlots, 2)
	assert.Equal(t, models.ReasonBooked, got.UnavailableSlots[0].Reason)
	assert.Equal(t, "res-1", got.UnavailableSlots[0].ReservationID)
	assert.Equal(t, models.StatusConfirmed, got.UnavailableSlots[0].ReservationStatus)
	assert.Equal(t, models.ReasonScheduleUnavailable, got.UnavailableSlots[1].Reason)
}

func TestEnumerateOverrideReplacesTemplate(t *testing.T) {
	sched := testSchedule()
	sched.SpecialDates = []models.SpecialDateOverride{{
		Date:   "2026-03-09",
		Reason: "tournament",
		Slots: []models.TimeSlot{
			{ID: "t-1", StartTime: "07:00", EndTime: "09:00", IsAvailable: true},
		},
	}}
	enumerator := NewSlotEnumerator(NewConflictDetector(newFakeRepo()))

	got, err := enumerator.Enumerate(context.Background(), testField(), day(t, "2026-03-09"), sched)
	require.NoError(t, err)

	assert.True(t, got.Summary.IsSpecialDate)
	assert.Equal(t, "tournament", got.Summary.SpecialDateReason)
	assert.Equal(t, 1, got.Summary.TotalSlots)
	require.Len(t, got.AvailableSlots, 1)
	assert.Equal(t, "t-1", got.AvailableSlots[0].SlotID)
	assert.Empty(t, got.UnavailableSlots)
}

func TestEnumerateNoSchedule(t *testing.T) {
	enumerator := NewSlotEnumerator(NewConflictDetector(newFakeRepo()))

	got, err := enumerator.Enumerate(context.Background(), testField(), day(t, "2026-03-08"), testSchedule())
	require.NoError(t, err)

	assert.Equal(t, 0, got.DayOfWeek)
	assert.Equal(t, 0, got.Summary.TotalSlots)
	assert.NotNil(t, got.AvailableSlots)
	assert.NotNil(t, got.UnavailableSlots)
	assert.NotEmpty(t, got.Summary.Message)
}
