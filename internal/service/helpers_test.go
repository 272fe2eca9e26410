package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var testLoc = models.LoadLocation(models.DefaultTimezone)

// Monday, 2 March 2026, 08:00 local.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, testLoc)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s, testLoc)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func rate(v float64) *float64 { return &v }

func testField() *models.Field {
	return &models.Field{
		ID:             "field-1",
		StadiumID:      "stadium-1",
		Name:           "Main pitch",
		Status:         models.FieldStatusActive,
		BaseHourlyRate: 10000,
		Currency:       models.DefaultCurrency,
	}
}

// testSchedule is open Monday to Saturday. Sunday has no template.
func testSchedule() *models.FieldSchedule {
	var days []models.DaySchedule
	for dow := 1; dow <= 6; dow++ {
		days = append(days, models.DaySchedule{
			DayOfWeek: dow,
			Slots: []models.TimeSlot{
				{ID: fmt.Sprintf("d%d-a", dow), StartTime: "08:00", EndTime: "10:00", IsAvailable: true},
				{ID: fmt.Sprintf("d%d-b", dow), StartTime: "10:00", EndTime: "12:00", IsAvailable: true},
				{ID: fmt.Sprintf("d%d-c", dow), StartTime: "12:00", EndTime: "13:00", IsAvailable: false},
				{ID: fmt.Sprintf("d%d-d", dow), StartTime: "18:00", EndTime: "20:00", IsAvailable: true, SpecialRate: rate(15000)},
			},
		})
	}
	return &models.FieldSchedule{StadiumID: "stadium-1", FieldID: "field-1", Days: days}
}

func testReferees() []*models.StaffMember {
	window := func(dow int, start, end string, ok bool) models.AvailabilityWindow {
		return models.AvailabilityWindow{DayOfWeek: dow, StartTime: start, EndTime: end, IsAvailable: ok}
	}
	return []*models.StaffMember{
		{
			ID: "ref-1", StadiumID: "stadium-1", Name: "Somchai", Role: models.StaffRoleReferee,
			Status: models.StaffStatusActive, HourlyRate: 5000,
			Availability: []models.AvailabilityWindow{window(1, "08:00", "12:00", true)},
		},
		{
			ID: "ref-2", StadiumID: "stadium-1", Name: "Noy", Role: models.StaffRoleReferee,
			Status: models.StaffStatusActive, HourlyRate: 6000,
			Availability: []models.AvailabilityWindow{window(1, "09:00", "12:00", true)},
		},
		{
			ID: "coach-1", StadiumID: "stadium-1", Name: "Khamla", Role: models.StaffRoleCoach,
			Status: models.StaffStatusActive, HourlyRate: 7000,
			Availability: []models.AvailabilityWindow{window(1, "06:00", "22:00", true)},
		},
		{
			ID: "ref-3", StadiumID: "stadium-1", Name: "Vong", Role: models.StaffRoleReferee,
			Status: models.StaffStatusInactive, HourlyRate: 5000,
			Availability: []models.AvailabilityWindow{window(1, "06:00", "22:00", true)},
		},
		{
			ID: "ref-4", StadiumID: "stadium-1", Name: "Bee", Role: models.StaffRoleReferee,
			Status: models.StaffStatusActive, HourlyRate: 5500,
			Availability: []models.AvailabilityWindow{
				window(1, "06:00", "22:00", false),
				window(2, "06:00", "22:00", true),
			},
		},
	}
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetStadium(ctx context.Context, id string) (*models.Stadium, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stadium), args.Error(1)
}

func (m *mockCatalog) GetField(ctx context.Context, id string) (*models.Field, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Field), args.Error(1)
}

func (m *mockCatalog) GetFieldSchedule(ctx context.Context, fieldID string) (*models.FieldSchedule, error) {
	args := m.Called(ctx, fieldID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FieldSchedule), args.Error(1)
}

type mockStaff struct {
	mock.Mock
}

func (m *mockStaff) ListStaff(ctx context.Context, stadiumID string) ([]*models.StaffMember, error) {
	args := m.Called(ctx, stadiumID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StaffMember), args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) EnqueueTask(ctx context.Context, taskType string, r *models.Reservation, status string) error {
	return m.Called(ctx, taskType, r, status).Error(0)
}

// fakeRepo keeps reservations in memory and enforces the overlap rule on insert.
type fakeRepo struct {
	mu        sync.Mutex
	items     map[string]*models.Reservation
	seq       int
	createErr func(r *models.Reservation) error
}

func newFakeRepo(existing ...*models.Reservation) *fakeRepo {
	repo := &fakeRepo{items: make(map[string]*models.Reservation)}
	for _, r := range existing {
		if r.ID == "" {
			repo.seq++
			r.ID = fmt.Sprintf("seed-%d", repo.seq)
		}
		repo.items[r.ID] = r
	}
	return repo
}

func (f *fakeRepo) GetReservation(_ context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) FindReservations(_ context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Reservation
	for _, r := range f.items {
		if filter.FieldID != "" && r.FieldID != filter.FieldID {
			continue
		}
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		if filter.FromDate != "" && r.Date < filter.FromDate {
			continue
		}
		if filter.ToDate != "" && r.Date > filter.ToDate {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.ExcludeID != "" && r.ID == filter.ExcludeID {
			continue
		}
		if filter.SeriesID != "" && (r.Membership == nil || r.Membership.SeriesID != filter.SeriesID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, r.Status) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func containsStatus(statuses []string, s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateReservation(_ context.Context, r *models.Reservation) error {
	if f.createErr != nil {
		if err := f.createErr(r); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, e, err := models.ParseRange(r.StartTime, r.EndTime)
	if err != nil {
		return err
	}
	for _, existing := range f.items {
		if existing.FieldID != r.FieldID || existing.Date != r.Date || !existing.IsActive() {
			continue
		}
		if firstOverlap([]*models.Reservation{existing}, s, e) != nil {
			return domain.ErrSlotConflict
		}
	}

	f.seq++
	r.ID = fmt.Sprintf("res-%d", f.seq)
	r.Version = 1
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeRepo) CancelReservationWithVersion(
	_ context.Context,
	id string,
	version int64,
	record models.CancellationRecord,
	entry models.HistoryEntry,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Version != version || !r.IsActive() {
		return domain.ErrConcurrentModification
	}
	r.Status = models.StatusCancelled
	r.Cancellation = &record
	r.History = append(r.History, entry)
	r.Version++
	return nil
}

func (f *fakeRepo) CancelSeries(
	_ context.Context,
	seriesID, fromDate string,
	entry models.HistoryEntry,
	refund domain.RefundFunc,
) ([]*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reservation
	for _, r := range f.items {
		if r.Membership == nil || r.Membership.SeriesID != seriesID || r.Date < fromDate || !r.IsActive() {
			continue
		}
		record := models.CancellationRecord{
			CancelledAt:  entry.CreatedAt,
			CancelledBy:  entry.ActorID,
			Reason:       entry.Note,
			RefundStatus: models.RefundNotApplicable,
		}
		if refund != nil {
			record.RefundAmount, record.RefundStatus = refund(r)
		}
		r.Status = models.StatusCancelled
		r.Membership.IsActive = false
		r.Cancellation = &record
		r.History = append(r.History, entry)
		r.Version++
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fixture struct {
	svc     *BookingService
	repo    *fakeRepo
	catalog *mockCatalog
	staff   *mockStaff
	sync    *mockSync
	clock   clockwork.FakeClock
}

func newFixture(t *testing.T, field *models.Field, existing ...*models.Reservation) *fixture {
	t.Helper()

	catalog := &mockCatalog{}
	catalog.On("GetField", mock.Anything, field.ID).Return(field, nil).Maybe()
	catalog.On("GetField", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound).Maybe()
	catalog.On("GetStadium", mock.Anything, field.StadiumID).
		Return(&models.Stadium{ID: field.StadiumID, OwnerID: "owner-1", Timezone: models.DefaultTimezone}, nil).Maybe()
	catalog.On("GetStadium", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound).Maybe()
	catalog.On("GetFieldSchedule", mock.Anything, field.ID).Return(testSchedule(), nil).Maybe()

	staff := &mockStaff{}
	staff.On("ListStaff", mock.Anything, field.StadiumID).Return(testReferees(), nil).Maybe()

	syncer := &mockSync{}
	syncer.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	repo := newFakeRepo(existing...)
	clock := clockwork.NewFakeClockAt(testNow)
	logger := zerolog.New(io.Discard)

	svc := NewBookingService(Deps{
		Catalog:      catalog,
		Reservations: repo,
		Staff:        staff,
		SyncWorker:   syncer,
		Clock:        clock,
	}, Options{Location: testLoc}, &logger)

	return &fixture{svc: svc, repo: repo, catalog: catalog, staff: staff, sync: syncer, clock: clock}
}

// syncedIDs returns the reservation ids enqueued with taskType, in call order.
func (f *fixture) syncedIDs(taskType string) []string {
	var ids []string
	for _, c := range f.sync.Calls {
		if c.Method != "EnqueueTask" || c.Arguments.String(1) != taskType {
			continue
		}
		ids = append(ids, c.Arguments.Get(2).(*models.Reservation).ID)
	}
	return ids
}

// setPayment marks stored reservations with the given payment status.
func (f *fakeRepo) setPayment(status string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.items[id].PaymentStatus = status
	}
}

func existingReservation(date, start, end, status string) *models.Reservation {
	return &models.Reservation{
		StadiumID:     "stadium-1",
		FieldID:       "field-1",
		UserID:        "someone",
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		Status:        status,
		PaymentStatus: models.PaymentPending,
		BookingType:   models.BookingTypeRegular,
		Version:       1,
	}
}
