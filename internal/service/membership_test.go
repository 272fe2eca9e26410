package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func weeklyRequest(total int) SeriesRequest {
	return SeriesRequest{
		FieldID:           "field-1",
		StartDate:         "2026-03-09",
		DayOfWeek:         1,
		RecurrencePattern: models.RecurrenceWeekly,
		StartTime:         "10:00",
		EndTime:           "12:00",
		TotalOccurrences:  intPtr(total),
	}
}

var member = models.Actor{ID: "user-1", Role: models.RoleCustomer}

func TestCreateMembershipSeries(t *testing.T) {
	f := newFixture(t, testField())

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, weeklyRequest(4))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.NotEmpty(t, result.SeriesID)

	created := result.Reservations()
	require.Len(t, created, 4)
	wantDates := []string{"2026-03-09", "2026-03-16", "2026-03-23", "2026-03-30"}
	for i, r := range created {
		assert.Equal(t, wantDates[i], r.Date)
		assert.Equal(t, "10:00", r.StartTime)
		assert.Equal(t, "12:00", r.EndTime)
		assert.Equal(t, models.StatusConfirmed, r.Status)
		assert.Equal(t, models.PaymentPending, r.PaymentStatus)
		assert.Equal(t, models.BookingTypeMembership, r.BookingType)
		assert.Equal(t, 20000.0, r.Pricing.Total)

		require.NotNil(t, r.Membership)
		assert.Equal(t, result.SeriesID, r.Membership.SeriesID)
		assert.Equal(t, 1, r.Membership.RecurrenceDayOfWeek)
		assert.Equal(t, "2026-03-09", r.Membership.MembershipStartDate)
		assert.Equal(t, i+1, r.Membership.CompletedOccurrences)
		assert.True(t, r.Membership.IsActive)
		assert.Equal(t, 1, int(day(t, r.Date).Weekday()))
	}
	assert.Equal(t, "2026-04-06", created[3].Membership.NextBookingDate)
	assert.Equal(t, 4, f.repo.count())
}

func TestCreateMembershipSeriesSkipsBookedDate(t *testing.T) {
	f := newFixture(t, testField(), existingReservation("2026-03-16", "11:00", "12:00", models.StatusPending))

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, weeklyRequest(4))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Outcomes, 4)

	skipped := result.Outcomes[1]
	assert.False(t, skipped.IsCreated())
	assert.Equal(t, "2026-03-16", skipped.Date)
	assert.Equal(t, models.ReasonBooked, skipped.SkipReason)

	var dates []string
	for _, r := range result.Reservations() {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2026-03-09", "2026-03-23", "2026-03-30"}, dates)
}

func TestCreateMembershipSeriesClosedDay(t *testing.T) {
	f := newFixture(t, testField())
	req := weeklyRequest(3)
	req.DayOfWeek = 0

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, req)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Skipped)
	for _, o := range result.Outcomes {
		assert.Equal(t, models.ReasonScheduleClosed, o.SkipReason)
	}
}

func TestCreateMembershipSeriesRaceBecomesSkip(t *testing.T) {
	f := newFixture(t, testField())
	f.repo.createErr = func(r *models.Reservation) error {
		if r.Date == "2026-03-16" {
			return domain.ErrSlotConflict
		}
		return nil
	}

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, weeklyRequest(3))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, models.ReasonBooked, result.Outcomes[1].SkipReason)
}

func TestCreateMembershipSeriesPartialFailure(t *testing.T) {
	f := newFixture(t, testField())
	boom := errors.New("disk full")
	f.repo.createErr = func(r *models.Reservation) error {
		if r.Date == "2026-03-23" {
			return boom
		}
		return nil
	}

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, weeklyRequest(4))
	require.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, f.repo.count(), "earlier occurrences stay in place")
}

func TestCreateMembershipSeriesWithReferee(t *testing.T) {
	f := newFixture(t, testField())
	req := weeklyRequest(2)
	req.RefereeCount = 1

	result, err := f.svc.CreateMembershipSeries(context.Background(), member, req)
	require.NoError(t, err)
	for _, r := range result.Reservations() {
		require.Len(t, r.Referees, 1)
		assert.Equal(t, "ref-1", r.Referees[0].StaffID)
		assert.Equal(t, 30000.0, r.Pricing.Total)
	}
}

func TestCreateMembershipSeriesValidation(t *testing.T) {
	f := newFixture(t, testField())
	ctx := context.Background()

	req := weeklyRequest(2)
	req.RecurrencePattern = "daily"
	_, err := f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)

	req = weeklyRequest(2)
	req.EndTime = "09:00"
	_, err = f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	req = weeklyRequest(2)
	req.StartDate = "2026-02-23"
	_, err = f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrPastDate)

	req = weeklyRequest(0)
	_, err = f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)

	req = weeklyRequest(200000)
	_, err = f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
	assert.Zero(t, f.repo.count())

	result, err := f.svc.CreateMembershipSeries(ctx, member, weeklyRequest(52))
	require.NoError(t, err)
	assert.Equal(t, 52, result.Created+result.Skipped)

	req = weeklyRequest(2)
	req.FieldID = "missing"
	_, err = f.svc.CreateMembershipSeries(ctx, member, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelMembershipSeries(t *testing.T) {
	f := newFixture(t, testField())
	ctx := context.Background()

	result, err := f.svc.CreateMembershipSeries(ctx, member, weeklyRequest(4))
	require.NoError(t, err)
	created := result.Reservations()

	// Move past the first occurrence.
	f.clock.Advance(8 * 24 * time.Hour)

	cancelled, err := f.svc.CancelMembershipSeries(ctx, created[0].ID, member, "moving away")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled.Cancelled)
	assert.Equal(t, "2026-03-10", cancelled.EffectiveOn)
	assert.Equal(t, result.SeriesID, cancelled.SeriesID)

	first, err := f.repo.GetReservation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, first.Status)

	for _, r := range created[1:] {
		got, err := f.repo.GetReservation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.False(t, got.Membership.IsActive)
		require.NotNil(t, got.Cancellation)
		assert.Equal(t, 0.0, got.Cancellation.RefundAmount)
		assert.Equal(t, models.RefundNotApplicable, got.Cancellation.RefundStatus)
	}
}

func TestCancelMembershipSeriesRefundsPaidOccurrences(t *testing.T) {
	f := newFixture(t, testField())
	ctx := context.Background()

	result, err := f.svc.CreateMembershipSeries(ctx, member, weeklyRequest(4))
	require.NoError(t, err)
	created := result.Reservations()
	require.Len(t, created, 4)
	f.repo.setPayment(models.PaymentPaid, created[1].ID, created[2].ID)

	// 2026-03-15 09:00, 25h before the 2026-03-16 occurrence.
	f.clock.Advance(13*24*time.Hour + time.Hour)

	cancelled, err := f.svc.CancelMembershipSeries(ctx, created[1].ID, member, "season over")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled.Cancelled)
	assert.Equal(t, 30000.0, cancelled.RefundTotal)
	require.Len(t, cancelled.Occurrences, 3)

	want := map[string]struct {
		amount float64
		status string
	}{
		created[1].ID: {10000, models.RefundPending},
		created[2].ID: {20000, models.RefundPending},
		created[3].ID: {0, models.RefundNotApplicable},
	}
	for id, w := range want {
		got, err := f.repo.GetReservation(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.Cancellation, id)
		assert.Equal(t, w.amount, got.Cancellation.RefundAmount, id)
		assert.Equal(t, w.status, got.Cancellation.RefundStatus, id)
	}
}

func TestCancelMembershipSeriesPaidInsideLockout(t *testing.T) {
	f := newFixture(t, testField())
	ctx := context.Background()

	result, err := f.svc.CreateMembershipSeries(ctx, member, weeklyRequest(2))
	require.NoError(t, err)
	created := result.Reservations()
	require.Len(t, created, 2)
	f.repo.setPayment(models.PaymentPaid, created[0].ID)

	// 2026-03-09 08:00, two hours before the first occurrence.
	f.clock.Advance(7 * 24 * time.Hour)

	cancelled, err := f.svc.CancelMembershipSeries(ctx, created[0].ID, member, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled.Cancelled)
	assert.Zero(t, cancelled.RefundTotal)

	got, err := f.repo.GetReservation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, models.RefundNone, got.Cancellation.RefundStatus)
}

func TestCancelMembershipSeriesSyncsOnlyChangedRows(t *testing.T) {
	f := newFixture(t, testField())
	ctx := context.Background()

	result, err := f.svc.CreateMembershipSeries(ctx, member, weeklyRequest(4))
	require.NoError(t, err)
	created := result.Reservations()
	require.Len(t, created, 4)

	_, err = f.svc.CancelBooking(ctx, created[3].ID, member, "away that week")
	require.NoError(t, err)
	assert.Equal(t, []string{created[3].ID}, f.syncedIDs(models.SyncTaskUpdateStatus))

	cancelled, err := f.svc.CancelMembershipSeries(ctx, created[0].ID, member, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled.Cancelled)

	assert.Equal(t, []string{created[3].ID, created[0].ID, created[1].ID, created[2].ID},
		f.syncedIDs(models.SyncTaskUpdateStatus))
}

func TestCancelMembershipSeriesRejects(t *testing.T) {
	single := existingReservation("2026-03-10", "10:00", "12:00", models.StatusConfirmed)
	single.ID = "single"
	f := newFixture(t, testField(), single)
	ctx := context.Background()

	_, err := f.svc.CancelMembershipSeries(ctx, "single", models.Actor{ID: "someone"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.CancelMembershipSeries(ctx, "single", models.Actor{ID: "stranger", Role: models.RoleCustomer}, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.CancelMembershipSeries(ctx, "nope", models.Actor{ID: "someone"}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
