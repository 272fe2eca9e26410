package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type Deps struct {
	Catalog      domain.ScheduleCatalog
	Reservations domain.ReservationRepository
	Staff        domain.StaffDirectory
	Locker       domain.SlotLocker
	EventBus     domain.EventPublisher
	SyncWorker   domain.SyncWorker
	Clock        clockwork.Clock
}

type Options struct {
	Location           *time.Location
	MaxAdvanceDays     int
	MaxOccurrences     int
	FullRefundHours    int
	PartialRefundHours int
}

// BookingRequest asks for a single reservation on behalf of the actor.
type BookingRequest struct {
	FieldID         string     `json:"fieldId"`
	Date            string     `json:"date"`
	StartTime       string     `json:"startTime"`
	EndTime         string     `json:"endTime"`
	RefereeCount    int        `json:"refereeCount,omitempty"`
	RequireReferees bool       `json:"requireReferees,omitempty"`
	Discounts       []Discount `json:"discounts,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

type SlotCheck struct {
	IsAvailable              bool   `json:"isAvailable"`
	Reason                   string `json:"reason"`
	ConflictingReservationID string `json:"conflictingReservationId,omitempty"`
}

type CancellationResult struct {
	Reservation *models.Reservation  `json:"reservation"`
	Decision    CancellationDecision `json:"decision"`
}

type SeriesCancellation struct {
	SeriesID    string  `json:"seriesId"`
	Cancelled   int64   `json:"cancelled"`
	EffectiveOn string  `json:"effectiveOn"`
	RefundTotal float64 `json:"refundTotal"`
	// Occurrences cancelled by this call, with their refunds.
	Occurrences []*models.Reservation `json:"occurrences"`
}

// BookingService is the entry point for availability, booking and
// cancellation operations.
type BookingService struct {
	catalog    domain.ScheduleCatalog
	repo       domain.ReservationRepository
	staff      domain.StaffDirectory
	locker     domain.SlotLocker
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	clock      clockwork.Clock

	detector   *ConflictDetector
	enumerator *SlotEnumerator
	pricing    PricingCalculator
	policy     *CancellationPolicy
	membership *MembershipEngine

	loc            *time.Location
	maxAdvanceDays int
	maxOccurrences int
	logger         *zerolog.Logger
}

func NewBookingService(deps Deps, opts Options, logger *zerolog.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = models.LoadLocation(models.DefaultTimezone)
	}
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = models.DefaultMaxOccurrences
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	detector := NewConflictDetector(deps.Reservations)
	s := &BookingService{
		catalog:        deps.Catalog,
		repo:           deps.Reservations,
		staff:          deps.Staff,
		locker:         deps.Locker,
		eventBus:       deps.EventBus,
		syncWorker:     deps.SyncWorker,
		clock:          deps.Clock,
		detector:       detector,
		enumerator:     NewSlotEnumerator(detector),
		policy:         NewCancellationPolicy(opts.Location, opts.FullRefundHours, opts.PartialRefundHours),
		loc:            opts.Location,
		maxAdvanceDays: opts.MaxAdvanceDays,
		maxOccurrences: opts.MaxOccurrences,
		logger:         logger,
	}
	s.membership = NewMembershipEngine(detector, s, deps.Reservations, logger)
	return s
}

func (s *BookingService) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *BookingService) parseDate(date string) (time.Time, error) {
	d, err := models.ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	return d, nil
}

func (s *BookingService) lastBookableDate(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return today.AddDate(0, 0, s.maxAdvanceDays)
}

// CheckSlot reports whether [start,end) can be booked on fieldID at date.
// Non-availability is a result, not an error.
func (s *BookingService) CheckSlot(ctx context.Context, fieldID, date, start, end string) (*SlotCheck, error) {
	if _, _, err := models.ParseRange(start, end); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	field, err := s.catalog.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	if !field.IsActive() {
		return &SlotCheck{Reason: models.ReasonFieldInactive}, nil
	}
	startAt, err := models.CombineDateTime(date, start, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	now := s.now()
	if startAt.Before(now) {
		return &SlotCheck{Reason: models.ReasonPastDate}, nil
	}
	if day.After(s.lastBookableDate(now)) {
		return &SlotCheck{Reason: models.ReasonBeyondWindow}, nil
	}

	sched, err := s.catalog.GetFieldSchedule(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if _, _, ok := sched.SlotsFor(day); !ok {
		return &SlotCheck{Reason: models.ReasonScheduleClosed}, nil
	}

	conflict, err := s.detector.FindConflict(ctx, fieldID, models.DateKey(day), start, end, "")
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return &SlotCheck{Reason: models.ReasonBooked, ConflictingReservationID: conflict.ID}, nil
	}
	return &SlotCheck{IsAvailable: true, Reason: models.ReasonAvailable}, nil
}

// GetAvailability returns the day breakdown of a field.
func (s *BookingService) GetAvailability(ctx context.Context, fieldID, date string) (*DayAvailability, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	field, err := s.catalog.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if models.DateKey(day) < models.DateKey(now) {
		return nil, domain.ErrPastDate
	}

	sched, err := s.catalog.GetFieldSchedule(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	return s.enumerator.Enumerate(ctx, field, day, sched)
}

// ListReferees returns referees of a stadium free for the whole range.
func (s *BookingService) ListReferees(ctx context.Context, stadiumID, date, start, end string) ([]*models.StaffMember, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetStadium(ctx, stadiumID); err != nil {
		return nil, err
	}
	staff, err := s.staff.ListStaff(ctx, stadiumID)
	if err != nil {
		return nil, err
	}
	return MatchReferees(staff, day, start, end)
}

func (s *BookingService) CreateBooking(ctx context.Context, actor models.Actor, req BookingRequest) (*models.Reservation, error) {
	if _, _, err := models.ParseRange(req.StartTime, req.EndTime); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	day, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}

	field, err := s.catalog.GetField(ctx, req.FieldID)
	if err != nil {
		return nil, err
	}
	if !field.IsActive() {
		return nil, domain.ErrFieldInactive
	}
	if _, err := s.catalog.GetStadium(ctx, field.StadiumID); err != nil {
		return nil, err
	}

	now := s.now()
	startAt, err := models.CombineDateTime(req.Date, req.StartTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	if startAt.Before(now) {
		return nil, domain.ErrPastDate
	}
	if day.After(s.lastBookableDate(now)) {
		return nil, domain.ErrDateTooFar
	}

	sched, err := s.catalog.GetFieldSchedule(ctx, field.ID)
	if err != nil {
		return nil, err
	}
	slots, _, ok := sched.SlotsFor(day)
	if !ok {
		return nil, domain.ErrScheduleClosed
	}
	free, err := s.detector.IsAvailable(ctx, field.ID, models.DateKey(day), req.StartTime, req.EndTime, "")
	if err != nil {
		return nil, err
	}
	if !free {
		metrics.IncSlotConflict()
		return nil, domain.ErrSlotConflict
	}

	var referees []*models.StaffMember
	if req.RefereeCount > 0 {
		staff, err := s.staff.ListStaff(ctx, field.StadiumID)
		if err != nil {
			return nil, err
		}
		matched, err := MatchReferees(staff, day, req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		if req.RequireReferees && len(matched) < req.RefereeCount {
			return nil, fmt.Errorf("%w: requested %d, found %d", domain.ErrRefereeUnavailable, req.RefereeCount, len(matched))
		}
		referees = pickReferees(matched, req.RefereeCount)
	}

	rate := ResolveRate(field, slots, req.StartTime, req.EndTime)
	pricing, err := s.pricing.Quote(rate, field.Currency, req.StartTime, req.EndTime, referees, req.Discounts)
	if err != nil {
		return nil, err
	}

	r := &models.Reservation{
		StadiumID:     field.StadiumID,
		FieldID:       field.ID,
		UserID:        actor.ID,
		Date:          models.DateKey(day),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		BookingType:   models.BookingTypeRegular,
		Pricing:       pricing,
		Referees:      assignments(referees),
		Notes:         req.Notes,
	}
	if err := s.place(ctx, r); err != nil {
		return nil, err
	}

	s.publishReservationEvent(events.EventReservationCreated, r, actor)
	s.enqueueSync(ctx, r, models.SyncTaskUpsert)
	return r, nil
}

// place serializes writers of one field and date, re-checks for overlap and
// inserts. The repository insert is the final authority.
func (s *BookingService) place(ctx context.Context, r *models.Reservation) error {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, fmt.Sprintf("slot:%s:%s", r.FieldID, r.Date))
		if err != nil {
			return fmt.Errorf("failed to lock slot: %w", err)
		}
		defer unlock()
	}

	conflict, err := s.detector.FindConflict(ctx, r.FieldID, r.Date, r.StartTime, r.EndTime, "")
	if err != nil {
		return err
	}
	if conflict != nil {
		metrics.IncSlotConflict()
		return domain.ErrSlotConflict
	}

	if err := s.repo.CreateReservation(ctx, r); err != nil {
		if errors.Is(err, domain.ErrSlotConflict) {
			metrics.IncSlotConflict()
		}
		return err
	}
	metrics.IncReservationCreated(r.BookingType)
	return nil
}

// CreateMembershipSeries books every free occurrence of a recurring request.
// Dates that are taken or closed are reported as skipped.
func (s *BookingService) CreateMembershipSeries(ctx context.Context, actor models.Actor, req SeriesRequest) (*SeriesResult, error) {
	if err := ValidatePattern(req.RecurrencePattern); err != nil {
		return nil, err
	}
	if _, _, err := models.ParseRange(req.StartTime, req.EndTime); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	if req.TotalOccurrences != nil && *req.TotalOccurrences <= 0 {
		return nil, fmt.Errorf("%w: totalOccurrences must be positive", domain.ErrInvalidRecurrence)
	}
	if req.TotalOccurrences != nil && *req.TotalOccurrences > s.maxOccurrences {
		return nil, fmt.Errorf("%w: totalOccurrences exceeds %d", domain.ErrInvalidRecurrence, s.maxOccurrences)
	}
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	start, err := s.parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if req.EndDate != nil {
		e, err := s.parseDate(*req.EndDate)
		if err != nil {
			return nil, err
		}
		end = &e
	}

	field, err := s.catalog.GetField(ctx, req.FieldID)
	if err != nil {
		return nil, err
	}
	if !field.IsActive() {
		return nil, domain.ErrFieldInactive
	}
	if _, err := s.catalog.GetStadium(ctx, field.StadiumID); err != nil {
		return nil, err
	}

	now := s.now()
	if models.DateKey(start) < models.DateKey(now) {
		return nil, domain.ErrPastDate
	}

	sched, err := s.catalog.GetFieldSchedule(ctx, field.ID)
	if err != nil {
		return nil, err
	}
	var staff []*models.StaffMember
	if req.RefereeCount > 0 {
		if staff, err = s.staff.ListStaff(ctx, field.StadiumID); err != nil {
			return nil, err
		}
	}

	maxOccurrences := s.maxOccurrences
	if req.TotalOccurrences != nil {
		maxOccurrences = *req.TotalOccurrences
	}
	dates, err := GenerateDates(RecurrenceRequest{
		Start:          start,
		End:            end,
		DayOfWeek:      req.DayOfWeek,
		Pattern:        req.RecurrencePattern,
		MaxOccurrences: maxOccurrences,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.membership.CreateSeries(ctx, seriesPlan{
		req:      req,
		userID:   actor.ID,
		field:    field,
		schedule: sched,
		staff:    staff,
		dates:    dates,
		now:      now,
		lastDate: s.lastBookableDate(now),
		seriesID: uuid.NewString(),
		location: s.loc,
	})
	if result != nil {
		for _, o := range result.Outcomes {
			if o.IsCreated() {
				s.enqueueSync(ctx, o.Reservation, models.SyncTaskUpsert)
			} else {
				metrics.IncOccurrenceSkipped(o.SkipReason)
			}
		}
	}
	if err != nil {
		if result != nil && result.Created > 0 {
			s.logger.Error().Err(err).
				Str("series_id", result.SeriesID).
				Int("created", result.Created).
				Msg("Membership series stopped after partial creation")
		}
		return result, err
	}

	s.publishSeriesEvent(events.EventSeriesCreated, events.SeriesEventPayload{
		SeriesID:  result.SeriesID,
		FieldID:   field.ID,
		UserID:    actor.ID,
		Pattern:   req.RecurrencePattern,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Created:   result.Created,
		Skipped:   result.Skipped,
		Dates:     createdDates(result),
		ChangedBy: actor.ID,
	})
	return result, nil
}

func (s *BookingService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *BookingService) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	return s.repo.FindReservations(ctx, filter)
}

func authorize(r *models.Reservation, actor models.Actor) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if actor.ID != r.UserID && !actor.IsPrivileged() {
		return domain.ErrUnauthorized
	}
	return nil
}

// CancelBooking cancels one reservation and computes its refund.
func (s *BookingService) CancelBooking(ctx context.Context, id string, actor models.Actor, reason string) (*CancellationResult, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(r, actor); err != nil {
		return nil, err
	}
	if !r.IsActive() || r.Cancellation != nil {
		return nil, fmt.Errorf("%w: reservation is %s", domain.ErrInvalidStatus, r.Status)
	}

	now := s.now()
	decision, err := s.policy.Evaluate(r, now, actor)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, domain.ErrCancellationWindowClosed
	}

	record := models.CancellationRecord{
		CancelledAt:  now.UTC(),
		CancelledBy:  actor.ID,
		Reason:       reason,
		RefundAmount: decision.RefundAmount,
		RefundStatus: decision.RefundStatus,
	}
	entry := models.HistoryEntry{
		Action:    "cancelled",
		Status:    models.StatusCancelled,
		ActorID:   actor.ID,
		Note:      reason,
		CreatedAt: now.UTC(),
	}
	if err := s.repo.CancelReservationWithVersion(ctx, r.ID, r.Version, record, entry); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	metrics.ObserveCancellation("single", decision.RefundStatus, 1)
	metrics.AddRefund(updated.Pricing.Currency, decision.RefundAmount)
	s.publishReservationEvent(events.EventReservationCancelled, updated, actor)
	s.enqueueSync(ctx, updated, models.SyncTaskUpdateStatus)

	return &CancellationResult{Reservation: updated, Decision: decision}, nil
}

// CancelMembershipSeries cancels every remaining occurrence of the series
// the given reservation belongs to.
func (s *BookingService) CancelMembershipSeries(
	ctx context.Context,
	id string,
	actor models.Actor,
	reason string,
) (*SeriesCancellation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(r, actor); err != nil {
		return nil, err
	}

	now := s.now()
	cancelled, err := s.membership.CancelSeries(ctx, r, actor, reason, now, s.policy)
	if err != nil {
		return nil, err
	}

	result := &SeriesCancellation{
		SeriesID:    r.Membership.SeriesID,
		Cancelled:   int64(len(cancelled)),
		EffectiveOn: models.DateKey(now),
		Occurrences: cancelled,
	}
	for _, c := range cancelled {
		if c.Cancellation != nil {
			result.RefundTotal += c.Cancellation.RefundAmount
			metrics.ObserveCancellation("series", c.Cancellation.RefundStatus, 1)
			metrics.AddRefund(c.Pricing.Currency, c.Cancellation.RefundAmount)
		}
		s.enqueueSync(ctx, c, models.SyncTaskUpdateStatus)
	}
	result.RefundTotal = roundMoney(result.RefundTotal)

	s.publishSeriesEvent(events.EventSeriesCancelled, events.SeriesEventPayload{
		SeriesID:    result.SeriesID,
		FieldID:     r.FieldID,
		UserID:      r.UserID,
		Cancelled:   result.Cancelled,
		EffectiveOn: result.EffectiveOn,
		ChangedBy:   actor.ID,
	})
	return result, nil
}

func (s *BookingService) publishReservationEvent(eventType string, r *models.Reservation, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		StadiumID:     r.StadiumID,
		FieldID:       r.FieldID,
		UserID:        r.UserID,
		Date:          r.Date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Status:        r.Status,
		BookingType:   r.BookingType,
		Total:         r.Pricing.Total,
		Currency:      r.Pricing.Currency,
		ChangedBy:     actor.ID,
		ChangedByRole: actor.Role,
	}
	if r.Cancellation != nil {
		amount := r.Cancellation.RefundAmount
		payload.RefundAmount = &amount
		payload.RefundStatus = r.Cancellation.RefundStatus
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishSeriesEvent(eventType string, payload events.SeriesEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("series_id", payload.SeriesID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.syncWorker == nil {
		return
	}

	var status string
	if taskType == models.SyncTaskUpdateStatus {
		status = r.Status
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, r, status); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func createdDates(result *SeriesResult) []string {
	var dates []string
	for _, o := range result.Outcomes {
		if o.IsCreated() {
			dates = append(dates, o.Date)
		}
	}
	return dates
}
