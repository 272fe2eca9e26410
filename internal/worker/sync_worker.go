package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TaskStore persists sync tasks so nothing is lost when redis or the
// in-memory queue drops them.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// syncPayload is persisted in SyncTask.Payload as JSON.
type syncPayload struct {
	ReservationID string              `json:"reservation_id"`
	Reservation   *models.Reservation `json:"reservation,omitempty"`
	Status        string              `json:"status,omitempty"`
}

// ReservationSyncWorker mirrors reservations into the spreadsheet.
type ReservationSyncWorker struct {
	store         TaskStore
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewReservationSyncWorker(
	store TaskStore,
	sheets domain.SheetsWriter,
	redisClient *redis.Client,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *ReservationSyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &ReservationSyncWorker{
		store:         store,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "fieldbook:sync:queue",
		deadLetterKey: "fieldbook:sync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
func (w *ReservationSyncWorker) EnqueueTask(ctx context.Context, taskType string, r *models.Reservation, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if r == nil || r.ID == "" {
		return errors.New("reservation id is required")
	}

	payload := syncPayload{ReservationID: r.ID, Status: status}
	if taskType == models.SyncTaskUpsert {
		payload.Reservation = r
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:      taskType,
		ReservationID: r.ID,
		Payload:       string(payloadBytes),
		Status:        models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("sync_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("sync_worker: in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *ReservationSyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync_worker: started")
	defer w.logger.Info().Msg("sync_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("sync_worker: fetch pending")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *ReservationSyncWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *ReservationSyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *ReservationSyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("sync_worker: redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sync_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *ReservationSyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.apply(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(models.SyncStatusCompleted)
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark completed")
	}
}

func (w *ReservationSyncWorker) apply(ctx context.Context, taskType string, payload syncPayload) error {
	if w.sheets == nil {
		return errors.New("sheets writer is not configured")
	}
	switch taskType {
	case models.SyncTaskUpsert:
		if payload.Reservation == nil {
			return errors.New("reservation payload missing")
		}
		return w.sheets.UpsertReservation(ctx, payload.Reservation)
	case models.SyncTaskUpdateStatus:
		if payload.ReservationID == "" || payload.Status == "" {
			return errors.New("reservation id or status missing")
		}
		return w.sheets.UpdateReservationStatus(ctx, payload.ReservationID, payload.Status)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *ReservationSyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(models.SyncStatusRetry)
	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark retry")
	}
}

func (w *ReservationSyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(models.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("reservation_id", task.ReservationID).Msg("sync_worker: task failed")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func decodePayload(raw string) (syncPayload, error) {
	var payload syncPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *ReservationSyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *ReservationSyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: deadletter push")
	}
}
