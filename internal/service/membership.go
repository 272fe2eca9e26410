package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SeriesRequest asks for a recurring membership booking.
type SeriesRequest struct {
	FieldID           string     `json:"fieldId"`
	StartDate         string     `json:"startDate"`
	EndDate           *string    `json:"endDate,omitempty"`
	DayOfWeek         int        `json:"dayOfWeek"`
	RecurrencePattern string     `json:"recurrencePattern"`
	StartTime         string     `json:"startTime"`
	EndTime           string     `json:"endTime"`
	TotalOccurrences  *int       `json:"totalOccurrences,omitempty"`
	RefereeCount      int        `json:"refereeCount,omitempty"`
	Discounts         []Discount `json:"discounts,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// OccurrenceOutcome is either Created or Skipped for one candidate date.
type OccurrenceOutcome struct {
	Date        string              `json:"date"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
	SkipReason  string              `json:"skipReason,omitempty"`
}

func Created(r *models.Reservation) OccurrenceOutcome {
	return OccurrenceOutcome{Date: r.Date, Reservation: r}
}

func Skipped(date, reason string) OccurrenceOutcome {
	return OccurrenceOutcome{Date: date, SkipReason: reason}
}

func (o OccurrenceOutcome) IsCreated() bool {
	return o.Reservation != nil
}

type SeriesResult struct {
	SeriesID string              `json:"seriesId"`
	Outcomes []OccurrenceOutcome `json:"outcomes"`
	Created  int                 `json:"created"`
	Skipped  int                 `json:"skipped"`
}

// Reservations returns the created occurrences in date order.
func (r *SeriesResult) Reservations() []*models.Reservation {
	var out []*models.Reservation
	for _, o := range r.Outcomes {
		if o.IsCreated() {
			out = append(out, o.Reservation)
		}
	}
	return out
}

type reservationPlacer interface {
	place(ctx context.Context, r *models.Reservation) error
}

// seriesPlan carries everything resolved before the generation loop.
type seriesPlan struct {
	req      SeriesRequest
	userID   string
	field    *models.Field
	schedule *models.FieldSchedule
	staff    []*models.StaffMember
	dates    []time.Time
	now      time.Time
	lastDate time.Time
	seriesID string
	location *time.Location
}

// MembershipEngine materializes recurring series one occurrence at a time.
// Occurrences already created stay in place when a later one fails.
type MembershipEngine struct {
	detector *ConflictDetector
	pricing  PricingCalculator
	placer   reservationPlacer
	repo     domain.ReservationRepository
	logger   *zerolog.Logger
}

func NewMembershipEngine(
	detector *ConflictDetector,
	placer reservationPlacer,
	repo domain.ReservationRepository,
	logger *zerolog.Logger,
) *MembershipEngine {
	return &MembershipEngine{
		detector: detector,
		placer:   placer,
		repo:     repo,
		logger:   logger,
	}
}

func (e *MembershipEngine) CreateSeries(ctx context.Context, plan seriesPlan) (*SeriesResult, error) {
	result := &SeriesResult{SeriesID: plan.seriesID}
	if len(plan.dates) == 0 {
		return result, nil
	}
	if result.SeriesID == "" {
		result.SeriesID = uuid.NewString()
	}

	req := plan.req
	first := plan.dates[0]
	startKey := models.DateKey(first)

	skip := func(date, reason string) {
		result.Outcomes = append(result.Outcomes, Skipped(date, reason))
		result.Skipped++
	}

	for _, date := range plan.dates {
		key := models.DateKey(date)

		slots, _, ok := plan.schedule.SlotsFor(date)
		if !ok {
			skip(key, models.ReasonScheduleClosed)
			continue
		}
		startAt, err := models.CombineDateTime(key, req.StartTime, plan.location)
		if err != nil {
			return result, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
		}
		if startAt.Before(plan.now) {
			skip(key, models.ReasonPastDate)
			continue
		}
		if !plan.lastDate.IsZero() && date.After(plan.lastDate) {
			skip(key, models.ReasonBeyondWindow)
			continue
		}

		conflict, err := e.detector.FindConflict(ctx, plan.field.ID, key, req.StartTime, req.EndTime, "")
		if err != nil {
			return result, err
		}
		if conflict != nil {
			skip(key, models.ReasonBooked)
			continue
		}

		var referees []*models.StaffMember
		if req.RefereeCount > 0 {
			matched, err := MatchReferees(plan.staff, date, req.StartTime, req.EndTime)
			if err != nil {
				return result, err
			}
			referees = pickReferees(matched, req.RefereeCount)
		}

		next, err := NextDate(date, first.Day(), req.RecurrencePattern)
		if err != nil {
			return result, err
		}

		rate := ResolveRate(plan.field, slots, req.StartTime, req.EndTime)
		pricing, err := e.pricing.Quote(rate, plan.field.Currency, req.StartTime, req.EndTime, referees, req.Discounts)
		if err != nil {
			return result, err
		}

		r := &models.Reservation{
			StadiumID:     plan.field.StadiumID,
			FieldID:       plan.field.ID,
			UserID:        plan.userID,
			Date:          key,
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			Status:        models.StatusConfirmed,
			PaymentStatus: models.PaymentPending,
			BookingType:   models.BookingTypeMembership,
			Pricing:       pricing,
			Referees:      assignments(referees),
			Notes:         req.Notes,
			Membership: &models.MembershipDetails{
				SeriesID:             result.SeriesID,
				MembershipStartDate:  startKey,
				MembershipEndDate:    req.EndDate,
				RecurrencePattern:    req.RecurrencePattern,
				RecurrenceDayOfWeek:  req.DayOfWeek,
				TotalOccurrences:     req.TotalOccurrences,
				CompletedOccurrences: result.Created + 1,
				NextBookingDate:      models.DateKey(next),
				IsActive:             true,
			},
		}

		if err := e.placer.place(ctx, r); err != nil {
			if errors.Is(err, domain.ErrSlotConflict) {
				skip(key, models.ReasonBooked)
				continue
			}
			return result, err
		}
		result.Created++
		result.Outcomes = append(result.Outcomes, Created(r))
	}

	e.logger.Info().
		Str("series_id", result.SeriesID).
		Str("field_id", plan.field.ID).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("Membership series generated")

	return result, nil
}

// CancelSeries cancels the remaining active occurrences of seed's series,
// each refunded by its own tier. Occurrences dated before today are left
// as they are.
func (e *MembershipEngine) CancelSeries(
	ctx context.Context,
	seed *models.Reservation,
	actor models.Actor,
	reason string,
	now time.Time,
	policy *CancellationPolicy,
) ([]*models.Reservation, error) {
	if seed.Membership == nil || seed.Membership.SeriesID == "" {
		return nil, fmt.Errorf("%w: reservation %s is not part of a membership", domain.ErrInvalidStatus, seed.ID)
	}
	entry := models.HistoryEntry{
		Action:    "series_cancelled",
		Status:    models.StatusCancelled,
		ActorID:   actor.ID,
		Note:      reason,
		CreatedAt: now.UTC(),
	}
	refund := func(r *models.Reservation) (float64, string) {
		return policy.RefundFor(r, now)
	}
	cancelled, err := e.repo.CancelSeries(ctx, seed.Membership.SeriesID, models.DateKey(now), entry, refund)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel series %s: %w", seed.Membership.SeriesID, err)
	}
	return cancelled, nil
}

func assignments(referees []*models.StaffMember) []models.RefereeAssignment {
	if len(referees) == 0 {
		return nil
	}
	out := make([]models.RefereeAssignment, 0, len(referees))
	for _, ref := range referees {
		out = append(out, models.RefereeAssignment{StaffID: ref.ID, Name: ref.Name, Rate: ref.HourlyRate})
	}
	return out
}
