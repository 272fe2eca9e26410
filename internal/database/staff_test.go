package database

import (
	"context"
	"testing"

	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStaff_Order(t *testing.T) {
	db := setupTestDB(t)
	seedField(t, db)
	ctx := context.Background()

	members := []*models.StaffMember{
		{ID: "z-ref", StadiumID: "stadium-1", Name: "First", Role: models.StaffRoleReferee, HourlyRate: 5000,
			Availability: []models.AvailabilityWindow{
				{DayOfWeek: 6, StartTime: "08:00", EndTime: "12:00", IsAvailable: true},
				{DayOfWeek: 0, StartTime: "14:00", EndTime: "18:00", IsAvailable: true},
			}},
		{ID: "a-ref", StadiumID: "stadium-1", Name: "Second", Role: models.StaffRoleReferee, HourlyRate: 6000},
		{ID: "coach", StadiumID: "stadium-1", Name: "Coach", Role: models.StaffRoleCoach, Status: models.StaffStatusInactive},
	}
	for i, m := range members {
		require.NoError(t, db.SaveStaffMember(ctx, m, i))
	}

	got, err := db.ListStaff(ctx, "stadium-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "z-ref", got[0].ID)
	assert.Equal(t, "a-ref", got[1].ID)
	assert.Equal(t, models.StaffStatusInactive, got[2].Status)

	require.Len(t, got[0].Availability, 2)
	assert.Equal(t, 6, got[0].Availability[0].DayOfWeek)
	assert.NotEmpty(t, got[0].Availability[0].ID)
	assert.Empty(t, got[1].Availability)

	empty, err := db.ListStaff(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
