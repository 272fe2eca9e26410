package service

import (
	"context"
	"testing"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConflict(t *testing.T) {
	booked := existingReservation("2026-03-09", "10:00", "12:00", models.StatusPending)
	booked.ID = "res-booked"
	repo := newFakeRepo(
		booked,
		existingReservation("2026-03-09", "14:00", "16:00", models.StatusCancelled),
		existingReservation("2026-03-10", "08:00", "20:00", models.StatusConfirmed),
	)
	detector := NewConflictDetector(repo)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end string
		conflict   bool
	}{
		{"ends where booking starts", "09:00", "10:00", false},
		{"starts where booking ends", "12:00", "13:00", false},
		{"overlaps tail", "11:00", "13:00", true},
		{"overlaps head", "09:00", "10:30", true},
		{"inside", "10:30", "11:00", true},
		{"covers", "09:00", "13:00", true},
		{"cancelled does not block", "14:00", "16:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := detector.FindConflict(ctx, "field-1", "2026-03-09", tt.start, tt.end, "")
			require.NoError(t, err)
			if tt.conflict {
				require.NotNil(t, c)
				assert.Equal(t, "res-booked", c.ID)
			} else {
				assert.Nil(t, c)
			}
		})
	}

	ok, err := detector.IsAvailable(ctx, "field-1", "2026-03-09", "10:00", "12:00", "res-booked")
	require.NoError(t, err)
	assert.True(t, ok, "excluded reservation should not conflict with itself")

	ok, err = detector.IsAvailable(ctx, "field-1", "2026-03-09", "11:00", "11:30", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = detector.IsAvailable(ctx, "field-2", "2026-03-10", "08:00", "09:00", "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = detector.FindConflict(ctx, "field-1", "2026-03-09", "12:00", "11:00", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}
