package service

import (
	"testing"

	"fieldbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refereeIDs(t *testing.T, start, end, date string) []string {
	t.Helper()
	matched, err := MatchReferees(testReferees(), day(t, date), start, end)
	require.NoError(t, err)
	ids := []string{}
	for _, m := range matched {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestMatchReferees(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		start, end string
		want       []string
	}{
		{"both cover", "2026-03-09", "09:00", "11:00", []string{"ref-1", "ref-2"}},
		{"only first window starts early enough", "2026-03-09", "08:00", "10:00", []string{"ref-1"}},
		{"exact window", "2026-03-09", "08:00", "12:00", []string{"ref-1"}},
		{"runs past every window", "2026-03-09", "11:00", "13:00", []string{}},
		{"other weekday", "2026-03-10", "09:00", "11:00", []string{"ref-4"}},
		{"no windows on sunday", "2026-03-08", "09:00", "11:00", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refereeIDs(t, tt.start, tt.end, tt.date))
		})
	}
}

func TestMatchRefereesInvalidRange(t *testing.T) {
	_, err := MatchReferees(testReferees(), day(t, "2026-03-09"), "11:00", "09:00")
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestPickReferees(t *testing.T) {
	staff := testReferees()

	assert.Nil(t, pickReferees(staff, 0))
	assert.Len(t, pickReferees(staff, 2), 2)
	assert.Equal(t, "ref-1", pickReferees(staff, 1)[0].ID)
	assert.Len(t, pickReferees(staff[:1], 3), 1)
}
