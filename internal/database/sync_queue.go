package database

import (
	"context"
	"fmt"
	"time"

	"fieldbook/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var syncTaskColumns = []string{
	"id", "task_type", "reservation_id", "payload", "status", "retry_count",
	"last_error", "created_at", "processed_at", "next_retry_at",
}

// Times in sync_queue are stored in UTC so that text comparison orders them.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now().UTC()

	query, args, err := sq.Insert("sync_queue").
		Columns("task_type", "reservation_id", "payload", "status", "retry_count", "last_error", "created_at", "next_retry_at").
		Values(task.TaskType, task.ReservationID, task.Payload, task.Status, task.RetryCount, task.LastError, now, utcPtr(task.NextRetryAt)).
		ToSql()
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	if task.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns tasks due for processing, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.selectSyncTasks(ctx, sq.Select(syncTaskColumns...).From("sync_queue").
		Where(sq.Eq{"status": []string{models.SyncStatusPending, models.SyncStatusRetry}}).
		Where(sq.Or{sq.Eq{"next_retry_at": nil}, sq.LtOrEq{"next_retry_at": time.Now().UTC()}}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)))
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.selectSyncTasks(ctx, sq.Select(syncTaskColumns...).From("sync_queue").
		Where(sq.Eq{"status": models.SyncStatusFailed}).
		OrderBy("created_at DESC", "id DESC"))
}

func (db *DB) selectSyncTasks(ctx context.Context, b sq.SelectBuilder) ([]models.SyncTask, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.ReservationID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateSyncTaskStatus moves a task to status. Retry bumps retry_count;
// terminal statuses stamp processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}

	b := sq.Update("sync_queue").
		Set("status", status).
		Set("last_error", lastErr).
		Set("next_retry_at", utcPtr(nextRetryAt)).
		Where(sq.Eq{"id": id})

	switch status {
	case models.SyncStatusRetry:
		b = b.Set("retry_count", sq.Expr("retry_count + 1"))
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		b = b.Set("processed_at", time.Now().UTC())
	}

	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// RequeueFailedSyncTasks puts every failed task back to pending with a
// fresh retry budget.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int64, error) {
	query, args, err := sq.Update("sync_queue").
		Set("status", models.SyncStatusPending).
		Set("retry_count", 0).
		Set("next_retry_at", nil).
		Set("processed_at", nil).
		Where(sq.Eq{"status": models.SyncStatusFailed}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue sync tasks: %w", err)
	}
	return res.RowsAffected()
}

// PurgeCompletedSyncTasks drops completed tasks processed before the cutoff.
func (db *DB) PurgeCompletedSyncTasks(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("sync_queue").
		Where(sq.Eq{"status": models.SyncStatusCompleted}).
		Where(sq.Lt{"processed_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync tasks: %w", err)
	}
	return res.RowsAffected()
}
