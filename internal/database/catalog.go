package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/google/uuid"
)

func (db *DB) GetStadium(ctx context.Context, id string) (*models.Stadium, error) {
	var s models.Stadium
	err := db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, timezone, created_at FROM stadiums WHERE id = ?`, id,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Timezone, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stadium %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stadium: %w", err)
	}
	return &s, nil
}

func (db *DB) GetField(ctx context.Context, id string) (*models.Field, error) {
	var f models.Field
	err := db.QueryRowContext(ctx,
		`SELECT id, stadium_id, name, status, base_hourly_rate, currency, created_at FROM fields WHERE id = ?`, id,
	).Scan(&f.ID, &f.StadiumID, &f.Name, &f.Status, &f.BaseHourlyRate, &f.Currency, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("field %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return &f, nil
}

func (db *DB) UpsertStadium(ctx context.Context, s *models.Stadium) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timezone == "" {
		s.Timezone = models.DefaultTimezone
	}
	_, err := db.ExecContext(ctx, `INSERT INTO stadiums (id, owner_id, name, timezone) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, name = excluded.name, timezone = excluded.timezone`,
		s.ID, s.OwnerID, s.Name, s.Timezone)
	if err != nil {
		return fmt.Errorf("failed to upsert stadium: %w", err)
	}
	return nil
}

func (db *DB) UpsertField(ctx context.Context, f *models.Field) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = models.FieldStatusActive
	}
	if f.Currency == "" {
		f.Currency = models.DefaultCurrency
	}
	_, err := db.ExecContext(ctx, `INSERT INTO fields (id, stadium_id, name, status, base_hourly_rate, currency)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET stadium_id = excluded.stadium_id, name = excluded.name,
            status = excluded.status, base_hourly_rate = excluded.base_hourly_rate, currency = excluded.currency`,
		f.ID, f.StadiumID, f.Name, f.Status, f.BaseHourlyRate, f.Currency)
	if err != nil {
		return fmt.Errorf("failed to upsert field: %w", err)
	}
	return nil
}

// GetFieldSchedule loads the weekly template and special dates of a field.
// A field without any rows yields an empty schedule, not an error.
func (db *DB) GetFieldSchedule(ctx context.Context, fieldID string) (*models.FieldSchedule, error) {
	field, err := db.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	sched := &models.FieldSchedule{StadiumID: field.StadiumID, FieldID: fieldID}

	rows, err := db.QueryContext(ctx, `SELECT id, day_of_week, start_time, end_time, is_available, special_rate
        FROM field_day_slots WHERE field_id = ? ORDER BY day_of_week, position, start_time`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to get day slots: %w", err)
	}
	byDay := make(map[int]int)
	for rows.Next() {
		var (
			day  int
			slot models.TimeSlot
			rate sql.NullFloat64
		)
		if err := rows.Scan(&slot.ID, &day, &slot.StartTime, &slot.EndTime, &slot.IsAvailable, &rate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan day slot: %w", err)
		}
		if rate.Valid {
			v := rate.Float64
			slot.SpecialRate = &v
		}
		idx, ok := byDay[day]
		if !ok {
			sched.Days = append(sched.Days, models.DaySchedule{DayOfWeek: day})
			idx = len(sched.Days) - 1
			byDay[day] = idx
		}
		sched.Days[idx].Slots = append(sched.Days[idx].Slots, slot)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT d.id, d.date, d.reason, s.id, s.start_time, s.end_time, s.is_available, s.special_rate
        FROM special_dates d
        LEFT JOIN special_date_slots s ON s.field_id = d.field_id AND s.special_date_id = d.id
        WHERE d.field_id = ? ORDER BY d.date, s.position, s.start_time`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to get special dates: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]int)
	for rows.Next() {
		var (
			ov                 models.SpecialDateOverride
			slotID, start, end sql.NullString
			avail              sql.NullBool
			rate               sql.NullFloat64
		)
		if err := rows.Scan(&ov.ID, &ov.Date, &ov.Reason, &slotID, &start, &end, &avail, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan special date: %w", err)
		}
		idx, ok := byDate[ov.ID]
		if !ok {
			sched.SpecialDates = append(sched.SpecialDates, ov)
			idx = len(sched.SpecialDates) - 1
			byDate[ov.ID] = idx
		}
		if !slotID.Valid {
			continue
		}
		slot := models.TimeSlot{ID: slotID.String, StartTime: start.String, EndTime: end.String, IsAvailable: avail.Bool}
		if rate.Valid {
			v := rate.Float64
			slot.SpecialRate = &v
		}
		sched.SpecialDates[idx].Slots = append(sched.SpecialDates[idx].Slots, slot)
	}
	return sched, rows.Err()
}

// SaveFieldSchedule replaces the stored schedule of sched.FieldID.
func (db *DB) SaveFieldSchedule(ctx context.Context, sched *models.FieldSchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM field_day_slots WHERE field_id = ?`, sched.FieldID); err != nil {
		return fmt.Errorf("failed to clear day slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM special_dates WHERE field_id = ?`, sched.FieldID); err != nil {
		return fmt.Errorf("failed to clear special dates: %w", err)
	}

	for di := range sched.Days {
		day := &sched.Days[di]
		for i := range day.Slots {
			slot := &day.Slots[i]
			if err := validateSlot(slot); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO field_day_slots
                (id, field_id, day_of_week, start_time, end_time, is_available, special_rate, position)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				slot.ID, sched.FieldID, day.DayOfWeek, slot.StartTime, slot.EndTime,
				boolToInt(slot.IsAvailable), slot.SpecialRate, i)
			if err != nil {
				return fmt.Errorf("failed to insert day slot: %w", err)
			}
		}
	}

	for oi := range sched.SpecialDates {
		ov := &sched.SpecialDates[oi]
		if ov.ID == "" {
			ov.ID = uuid.NewString()
		}
		if _, err := models.ParseDate(ov.Date, nil); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO special_dates (id, field_id, date, reason) VALUES (?, ?, ?, ?)`,
			ov.ID, sched.FieldID, ov.Date, ov.Reason); err != nil {
			return fmt.Errorf("failed to insert special date: %w", err)
		}
		for i := range ov.Slots {
			slot := &ov.Slots[i]
			if err := validateSlot(slot); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO special_date_slots
                (id, field_id, special_date_id, start_time, end_time, is_available, special_rate, position)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				slot.ID, sched.FieldID, ov.ID, slot.StartTime, slot.EndTime, boolToInt(slot.IsAvailable), slot.SpecialRate, i)
			if err != nil {
				return fmt.Errorf("failed to insert special date slot: %w", err)
			}
		}
	}

	return tx.Commit()
}

func validateSlot(slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if _, _, err := models.ParseRange(slot.StartTime, slot.EndTime); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	return nil
}

// SyncCatalog upserts stadiums, fields, schedules and staff from seed data.
func (db *DB) SyncCatalog(ctx context.Context, catalog *models.Catalog) error {
	for i := range catalog.Stadiums {
		if err := db.UpsertStadium(ctx, &catalog.Stadiums[i]); err != nil {
			return err
		}
	}
	for i := range catalog.Fields {
		if err := db.UpsertField(ctx, &catalog.Fields[i]); err != nil {
			return err
		}
	}
	for i := range catalog.Schedules {
		if err := db.SaveFieldSchedule(ctx, &catalog.Schedules[i]); err != nil {
			return fmt.Errorf("schedule for field %s: %w", catalog.Schedules[i].FieldID, err)
		}
	}
	for i := range catalog.Staff {
		if err := db.SaveStaffMember(ctx, &catalog.Staff[i], i); err != nil {
			return err
		}
	}

	db.logger.Info().
		Int("stadiums", len(catalog.Stadiums)).
		Int("fields", len(catalog.Fields)).
		Int("staff", len(catalog.Staff)).
		Msg("Catalog synchronized")
	return nil
}
