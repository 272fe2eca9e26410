package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"fieldbook/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type nullableWindow struct {
	id, start, end sql.NullString
	day            sql.NullInt64
	available      sql.NullBool
}

var reservationColumns = []string{
	"id", "stadium_id", "field_id", "user_id", "date", "start_time", "end_time",
	"status", "payment_status", "booking_type", "pricing", "referees", "notes",
	"series_id", "membership_start_date", "membership_end_date", "recurrence_pattern",
	"recurrence_day_of_week", "total_occurrences", "completed_occurrences",
	"next_booking_date", "membership_active",
	"cancelled_at", "cancelled_by", "cancel_reason", "refund_amount", "refund_status",
	"created_at", "updated_at", "version",
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                                       models.Reservation
		pricing, referees                       string
		seriesID, startDate, endDate, pattern   sql.NullString
		nextDate                                sql.NullString
		dayOfWeek, total, completed, active     sql.NullInt64
		cancelledAt                             sql.NullTime
		cancelledBy, cancelReason, refundStatus sql.NullString
		refundAmount                            sql.NullFloat64
	)
	err := row.Scan(
		&r.ID, &r.StadiumID, &r.FieldID, &r.UserID, &r.Date, &r.StartTime, &r.EndTime,
		&r.Status, &r.PaymentStatus, &r.BookingType, &pricing, &referees, &r.Notes,
		&seriesID, &startDate, &endDate, &pattern,
		&dayOfWeek, &total, &completed,
		&nextDate, &active,
		&cancelledAt, &cancelledBy, &cancelReason, &refundAmount, &refundStatus,
		&r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(pricing), &r.Pricing); err != nil {
		return nil, fmt.Errorf("failed to decode pricing of %s: %w", r.ID, err)
	}
	if referees != "" {
		if err := json.Unmarshal([]byte(referees), &r.Referees); err != nil {
			return nil, fmt.Errorf("failed to decode referees of %s: %w", r.ID, err)
		}
	}

	if seriesID.Valid {
		m := &models.MembershipDetails{
			SeriesID:             seriesID.String,
			MembershipStartDate:  startDate.String,
			RecurrencePattern:    pattern.String,
			RecurrenceDayOfWeek:  int(dayOfWeek.Int64),
			CompletedOccurrences: int(completed.Int64),
			NextBookingDate:      nextDate.String,
			IsActive:             active.Int64 == 1,
		}
		if endDate.Valid {
			v := endDate.String
			m.MembershipEndDate = &v
		}
		if total.Valid {
			v := int(total.Int64)
			m.TotalOccurrences = &v
		}
		r.Membership = m
	}

	if cancelledAt.Valid {
		r.Cancellation = &models.CancellationRecord{
			CancelledAt:  cancelledAt.Time,
			CancelledBy:  cancelledBy.String,
			Reason:       cancelReason.String,
			RefundAmount: refundAmount.Float64,
			RefundStatus: refundStatus.String,
		}
	}

	return &r, nil
}

// membershipArgs flattens optional membership details into column values.
func membershipArgs(m *models.MembershipDetails) []interface{} {
	if m == nil {
		return []interface{}{nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}
	return []interface{}{
		m.SeriesID, m.MembershipStartDate, m.MembershipEndDate, m.RecurrencePattern,
		m.RecurrenceDayOfWeek, m.TotalOccurrences, m.CompletedOccurrences,
		m.NextBookingDate, boolToInt(m.IsActive),
	}
}
