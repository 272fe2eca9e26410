package domain

import (
	"context"

	"fieldbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ScheduleCatalog is the read side of stadiums, fields and their schedules.
type ScheduleCatalog interface {
	GetStadium(ctx context.Context, id string) (*models.Stadium, error)
	GetField(ctx context.Context, id string) (*models.Field, error)
	GetFieldSchedule(ctx context.Context, fieldID string) (*models.FieldSchedule, error)
}

type StaffDirectory interface {
	ListStaff(ctx context.Context, stadiumID string) ([]*models.StaffMember, error)
}

// ReservationFilter selects reservations. Empty fields are not applied.
type ReservationFilter struct {
	FieldID   string
	Date      string
	FromDate  string
	ToDate    string
	Statuses  []string
	SeriesID  string
	UserID    string
	ExcludeID string
}

type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	FindReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error)
	// CreateReservation inserts r unless it overlaps an active reservation
	// on the same field and date, in which case ErrSlotConflict is returned.
	CreateReservation(ctx context.Context, r *models.Reservation) error
	CancelReservationWithVersion(
		ctx context.Context,
		id string,
		version int64,
		record models.CancellationRecord,
		entry models.HistoryEntry,
	) error
	// CancelSeries cancels active occurrences of a series dated on or after
	// fromDate and returns exactly the rows it changed. refund is asked for
	// the refund of every occurrence.
	CancelSeries(ctx context.Context, seriesID, fromDate string, entry models.HistoryEntry, refund RefundFunc) ([]*models.Reservation, error)
}

// RefundFunc returns the refund amount and status owed for cancelling r.
type RefundFunc func(r *models.Reservation) (amount float64, status string)

// SlotLocker serializes writers for one field and date.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservation *models.Reservation, status string) error
}

type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID, status string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
