package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens the sqlite database at path and applies the schema.
// Writers are funneled through a single connection and every transaction
// takes the write lock up front.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func dsn(path string) string {
	return path + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS stadiums (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL,
            timezone TEXT NOT NULL DEFAULT 'Asia/Vientiane',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS fields (
            id TEXT PRIMARY KEY,
            stadium_id TEXT NOT NULL REFERENCES stadiums(id),
            name TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            base_hourly_rate REAL NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT 'LAK',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS field_day_slots (
            id TEXT NOT NULL,
            field_id TEXT NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
            day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            is_available INTEGER NOT NULL DEFAULT 1,
            special_rate REAL,
            position INTEGER NOT NULL DEFAULT 0,
            CHECK (end_time > start_time),
            PRIMARY KEY (field_id, day_of_week, id)
        )`,
		`CREATE TABLE IF NOT EXISTS special_dates (
            id TEXT NOT NULL,
            field_id TEXT NOT NULL REFERENCES fields(id) ON DELETE CASCADE,
            date TEXT NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            PRIMARY KEY (field_id, id),
            UNIQUE (field_id, date)
        )`,
		`CREATE TABLE IF NOT EXISTS special_date_slots (
            id TEXT NOT NULL,
            field_id TEXT NOT NULL,
            special_date_id TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            is_available INTEGER NOT NULL DEFAULT 1,
            special_rate REAL,
            position INTEGER NOT NULL DEFAULT 0,
            CHECK (end_time > start_time),
            PRIMARY KEY (field_id, special_date_id, id),
            FOREIGN KEY (field_id, special_date_id) REFERENCES special_dates(field_id, id) ON DELETE CASCADE
        )`,
		`CREATE TABLE IF NOT EXISTS staff (
            id TEXT PRIMARY KEY,
            stadium_id TEXT NOT NULL REFERENCES stadiums(id),
            name TEXT NOT NULL,
            role TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            hourly_rate REAL NOT NULL DEFAULT 0,
            position INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS staff_availability (
            id TEXT NOT NULL,
            staff_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
            day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            is_available INTEGER NOT NULL DEFAULT 1,
            position INTEGER NOT NULL DEFAULT 0,
            PRIMARY KEY (staff_id, id)
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            stadium_id TEXT NOT NULL,
            field_id TEXT NOT NULL REFERENCES fields(id),
            user_id TEXT NOT NULL,
            date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            booking_type TEXT NOT NULL DEFAULT 'regular',
            pricing TEXT NOT NULL DEFAULT '{}',
            referees TEXT NOT NULL DEFAULT '[]',
            notes TEXT NOT NULL DEFAULT '',
            series_id TEXT,
            membership_start_date TEXT,
            membership_end_date TEXT,
            recurrence_pattern TEXT,
            recurrence_day_of_week INTEGER,
            total_occurrences INTEGER,
            completed_occurrences INTEGER,
            next_booking_date TEXT,
            membership_active INTEGER,
            cancelled_at DATETIME,
            cancelled_by TEXT,
            cancel_reason TEXT,
            refund_amount REAL,
            refund_status TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (end_time > start_time)
        )`,
		`CREATE TABLE IF NOT EXISTS reservation_history (
            id TEXT PRIMARY KEY,
            reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
            action TEXT NOT NULL,
            status TEXT NOT NULL,
            actor_id TEXT NOT NULL DEFAULT '',
            note TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// Два активных бронирования не могут начинаться в одно время
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_slot
            ON reservations(field_id, date, start_time)
            WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_field_date ON reservations(field_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_series ON reservations(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_reservation ON reservation_history(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_day_slots_field ON field_day_slots(field_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_staff_stadium ON staff(stadium_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
