package models

import "time"

const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"

	SyncStatusPending    = "pending"
	SyncStatusProcessing = "processing"
	SyncStatusRetry      = "retry"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// SyncTask represents a queued mirror job for a reservation.
type SyncTask struct {
	ID            int64      `json:"id"`
	TaskType      string     `json:"task_type"`
	ReservationID string     `json:"reservation_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	LastError     *string    `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
}
