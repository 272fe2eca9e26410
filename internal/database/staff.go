package database

import (
	"context"
	"fmt"

	"fieldbook/internal/models"

	"github.com/google/uuid"
)

// SaveStaffMember upserts a staff member and replaces its availability windows.
func (db *DB) SaveStaffMember(ctx context.Context, m *models.StaffMember, position int) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.StaffStatusActive
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO staff (id, stadium_id, name, role, status, hourly_rate, position)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET stadium_id = excluded.stadium_id, name = excluded.name, role = excluded.role,
            status = excluded.status, hourly_rate = excluded.hourly_rate, position = excluded.position`,
		m.ID, m.StadiumID, m.Name, m.Role, m.Status, m.HourlyRate, position)
	if err != nil {
		return fmt.Errorf("failed to upsert staff member: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_availability WHERE staff_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear staff availability: %w", err)
	}
	for i := range m.Availability {
		w := &m.Availability[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO staff_availability
            (id, staff_id, day_of_week, start_time, end_time, is_available, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.ID, m.ID, w.DayOfWeek, w.StartTime, w.EndTime, boolToInt(w.IsAvailable), i)
		if err != nil {
			return fmt.Errorf("failed to insert availability window: %w", err)
		}
	}

	return tx.Commit()
}

// ListStaff returns the staff of a stadium in directory order.
func (db *DB) ListStaff(ctx context.Context, stadiumID string) ([]*models.StaffMember, error) {
	rows, err := db.QueryContext(ctx, `SELECT s.id, s.stadium_id, s.name, s.role, s.status, s.hourly_rate,
            a.id, a.day_of_week, a.start_time, a.end_time, a.is_available
        FROM staff s LEFT JOIN staff_availability a ON a.staff_id = s.id
        WHERE s.stadium_id = ?
        ORDER BY s.position, s.id, a.position`, stadiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var (
		members []*models.StaffMember
		byID    = make(map[string]*models.StaffMember)
	)
	for rows.Next() {
		var (
			m      models.StaffMember
			window nullableWindow
		)
		err := rows.Scan(&m.ID, &m.StadiumID, &m.Name, &m.Role, &m.Status, &m.HourlyRate,
			&window.id, &window.day, &window.start, &window.end, &window.available)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		member, ok := byID[m.ID]
		if !ok {
			member = &m
			byID[m.ID] = member
			members = append(members, member)
		}
		if window.id.Valid {
			member.Availability = append(member.Availability, models.AvailabilityWindow{
				ID:          window.id.String,
				DayOfWeek:   int(window.day.Int64),
				StartTime:   window.start.String,
				EndTime:     window.end.String,
				IsAvailable: window.available.Bool,
			})
		}
	}
	return members, rows.Err()
}
