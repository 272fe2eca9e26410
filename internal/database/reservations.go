package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// CreateReservation checks for overlapping active reservations and inserts r
// inside one write transaction. The active-slot unique index backs the check.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if _, _, err := models.ParseRange(r.StartTime, r.EndTime); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Overlap check inside the transaction
	var overlapping int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations
        WHERE field_id = ? AND date = ? AND status IN (?, ?) AND start_time < ? AND end_time > ?`,
		r.FieldID, r.Date, models.StatusPending, models.StatusConfirmed, r.EndTime, r.StartTime,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return domain.ErrSlotConflict
	}

	// 2. Insert
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	pricing, err := json.Marshal(r.Pricing)
	if err != nil {
		return fmt.Errorf("failed to encode pricing: %w", err)
	}
	referees := []byte("[]")
	if len(r.Referees) > 0 {
		if referees, err = json.Marshal(r.Referees); err != nil {
			return fmt.Errorf("failed to encode referees: %w", err)
		}
	}

	now := time.Now().UTC()
	args := []interface{}{
		r.ID, r.StadiumID, r.FieldID, r.UserID, r.Date, r.StartTime, r.EndTime,
		r.Status, r.PaymentStatus, r.BookingType, string(pricing), string(referees), r.Notes,
	}
	args = append(args, membershipArgs(r.Membership)...)
	args = append(args, now, now, 1)

	_, err = tx.ExecContext(ctx, `INSERT INTO reservations (
            id, stadium_id, field_id, user_id, date, start_time, end_time,
            status, payment_status, booking_type, pricing, referees, notes,
            series_id, membership_start_date, membership_end_date, recurrence_pattern,
            recurrence_day_of_week, total_occurrences, completed_occurrences,
            next_booking_date, membership_active,
            created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotConflict
		}
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	entry := models.HistoryEntry{
		ID:        uuid.NewString(),
		Action:    "created",
		Status:    r.Status,
		ActorID:   r.UserID,
		CreatedAt: now,
	}
	if err := insertHistory(ctx, tx, r.ID, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotConflict
		}
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	r.History = append(r.History, entry)
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query, args, err := sq.Select(reservationColumns...).From("reservations").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	r, err := scanReservation(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	history, err := db.GetReservationHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	r.History = history
	return r, nil
}

// FindReservations returns reservations matching filter ordered by date and start time.
func (db *DB) FindReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	builder := sq.Select(reservationColumns...).From("reservations").
		Where(filterConditions(filter)).
		OrderBy("date ASC", "start_time ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer rows.Close()

	var result []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func filterConditions(f domain.ReservationFilter) sq.And {
	cond := sq.And{}
	if f.FieldID != "" {
		cond = append(cond, sq.Eq{"field_id": f.FieldID})
	}
	if f.Date != "" {
		cond = append(cond, sq.Eq{"date": f.Date})
	}
	if f.FromDate != "" {
		cond = append(cond, sq.GtOrEq{"date": f.FromDate})
	}
	if f.ToDate != "" {
		cond = append(cond, sq.LtOrEq{"date": f.ToDate})
	}
	if len(f.Statuses) > 0 {
		cond = append(cond, sq.Eq{"status": f.Statuses})
	}
	if f.SeriesID != "" {
		cond = append(cond, sq.Eq{"series_id": f.SeriesID})
	}
	if f.UserID != "" {
		cond = append(cond, sq.Eq{"user_id": f.UserID})
	}
	if f.ExcludeID != "" {
		cond = append(cond, sq.NotEq{"id": f.ExcludeID})
	}
	return cond
}

// CancelReservationWithVersion moves an active reservation to cancelled and
// attaches its cancellation record. A stale version, an inactive status or an
// already attached record yields ErrConcurrentModification.
func (db *DB) CancelReservationWithVersion(
	ctx context.Context,
	id string,
	version int64,
	record models.CancellationRecord,
	entry models.HistoryEntry,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := sq.Update("reservations").
		Set("status", models.StatusCancelled).
		Set("membership_active", sq.Expr("CASE WHEN series_id IS NULL THEN NULL ELSE 0 END")).
		Set("cancelled_at", record.CancelledAt).
		Set("cancelled_by", record.CancelledBy).
		Set("cancel_reason", record.Reason).
		Set("refund_amount", record.RefundAmount).
		Set("refund_status", record.RefundStatus).
		Set("updated_at", time.Now().UTC()).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": id, "version": version, "status": models.ActiveStatuses(), "cancelled_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}

	if err := insertHistory(ctx, tx, id, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelSeries cancels every active occurrence of seriesID dated on or after
// fromDate in one transaction. Each row gets its own refund from refund and a
// history entry. Only the rows changed here are returned.
func (db *DB) CancelSeries(
	ctx context.Context,
	seriesID, fromDate string,
	entry models.HistoryEntry,
	refund domain.RefundFunc,
) ([]*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := sq.Select(reservationColumns...).From("reservations").
		Where(sq.Eq{"series_id": seriesID, "status": models.ActiveStatuses()}).
		Where(sq.GtOrEq{"date": fromDate}).
		OrderBy("date ASC", "start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select series occurrences: %w", err)
	}
	var occurrences []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occurrences = append(occurrences, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cancelled := make([]*models.Reservation, 0, len(occurrences))
	for _, r := range occurrences {
		record := models.CancellationRecord{
			CancelledAt:  entry.CreatedAt,
			CancelledBy:  entry.ActorID,
			Reason:       entry.Note,
			RefundStatus: models.RefundNotApplicable,
		}
		if refund != nil {
			record.RefundAmount, record.RefundStatus = refund(r)
		}

		update, updateArgs, err := sq.Update("reservations").
			Set("status", models.StatusCancelled).
			Set("membership_active", 0).
			Set("cancelled_at", record.CancelledAt).
			Set("cancelled_by", record.CancelledBy).
			Set("cancel_reason", record.Reason).
			Set("refund_amount", record.RefundAmount).
			Set("refund_status", record.RefundStatus).
			Set("updated_at", entry.CreatedAt).
			Set("version", sq.Expr("version + 1")).
			Where(sq.Eq{"id": r.ID, "version": r.Version}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, update, updateArgs...); err != nil {
			return nil, fmt.Errorf("failed to cancel occurrence %s: %w", r.ID, err)
		}

		e := entry
		e.ID = ""
		if err := insertHistory(ctx, tx, r.ID, e); err != nil {
			return nil, err
		}

		r.Status = models.StatusCancelled
		r.Cancellation = &record
		r.UpdatedAt = entry.CreatedAt
		r.Version++
		if r.Membership != nil {
			r.Membership.IsActive = false
		}
		cancelled = append(cancelled, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit series cancellation: %w", err)
	}
	return cancelled, nil
}

func (db *DB) GetReservationHistory(ctx context.Context, reservationID string) ([]models.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, action, status, actor_id, note, created_at
        FROM reservation_history WHERE reservation_id = ? ORDER BY rowid`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Status, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertHistory(ctx context.Context, tx execer, reservationID string, e models.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO reservation_history
        (id, reservation_id, action, status, actor_id, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, reservationID, e.Action, e.Status, e.ActorID, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}
