package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/domain"
	"hostellite/internal/events"
	"hostellite/internal/logging"
	"hostellite/internal/metrics"
	"hostellite/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	deadLetterKey = "hostellite:confirmations:deadletter"
	// unrecordedKey holds ids of tasks confirmed on the server whose
	// completion never reached the ledger.
	unrecordedKey = "hostellite:confirmations:unrecorded"

	ledgerWriteAttempts = 3
	ledgerWriteDelay    = 200 * time.Millisecond
)

// TaskStore is the part of the confirmation ledger the worker drives.
type TaskStore interface {
	GetDueConfirmationTasks(ctx context.Context, limit int) ([]models.ConfirmationTask, error)
	UpdateConfirmationTask(ctx context.Context, id int64, status models.TaskStatus, errMsg string, nextRetryAt *time.Time) error
}

type Confirmer interface {
	ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.Booking, error)
}

// ConfirmationWorker replays booking confirmations for payments that were
// captured while the backend could not confirm them.
type ConfirmationWorker struct {
	store        TaskStore
	api          Confirmer
	events       domain.EventPublisher
	redis        *redis.Client
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	callTimeout  time.Duration
	logger       *zerolog.Logger

	writeAttempts int
	writeDelay    time.Duration

	mu         sync.Mutex
	unrecorded map[int64]struct{}
}

type Option func(*ConfirmationWorker)

func WithEvents(p domain.EventPublisher) Option {
	return func(w *ConfirmationWorker) { w.events = p }
}

// WithDeadLetter mirrors escalated and unrecorded tasks into Redis for operators.
func WithDeadLetter(client *redis.Client) Option {
	return func(w *ConfirmationWorker) { w.redis = client }
}

// NewConfirmationWorker builds a worker with sane defaults.
func NewConfirmationWorker(store TaskStore, api Confirmer, cfg config.ReconcileConfig, logger *zerolog.Logger, opts ...Option) *ConfirmationWorker {
	w := &ConfirmationWorker{
		store:        store,
		api:          api,
		retryPolicy:  retryPolicyFromConfig(cfg),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		callTimeout:  20 * time.Second,
		logger:       logging.Component(logger, "confirmation_worker"),

		writeAttempts: ledgerWriteAttempts,
		writeDelay:    ledgerWriteDelay,
		unrecorded:    make(map[int64]struct{}),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 20
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start polls the ledger until ctx is done.
func (w *ConfirmationWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("Confirmation worker started")
	defer w.logger.Info().Msg("Confirmation worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to fetch due confirmation tasks")
		}
		if n == w.batchSize {
			// a full batch likely means more are due
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of due tasks and returns how many it handled.
// Tasks still waiting on a ledger write are not counted.
func (w *ConfirmationWorker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.store.GetDueConfirmationTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	handled := 0
	for i := range tasks {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		if w.processTask(ctx, &tasks[i]) {
			handled++
		}
	}
	return handled, nil
}

func (w *ConfirmationWorker) processTask(ctx context.Context, task *models.ConfirmationTask) bool {
	logger := w.logger.With().
		Int64("task_id", task.ID).
		Str("booking_id", task.BookingID).
		Str("payment_intent_id", task.PaymentIntentID).
		Logger()

	if w.isUnrecorded(ctx, task.ID) {
		// already confirmed on the server, never confirm twice
		return w.complete(ctx, task, &logger)
	}

	req, err := task.Request()
	if err != nil {
		w.escalate(ctx, task, err)
		return true
	}

	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	_, err = w.api.ConfirmBooking(callCtx, req)
	cancel()
	if err != nil {
		if permanent(err) {
			w.escalate(ctx, task, err)
			return true
		}
		w.retryOrEscalate(ctx, task, err)
		return true
	}
	return w.complete(ctx, task, &logger)
}

// complete records a server-side confirmation in the ledger. When the write
// keeps failing the task is remembered as unrecorded and skipped by later
// replays until the write succeeds.
func (w *ConfirmationWorker) complete(ctx context.Context, task *models.ConfirmationTask, logger *zerolog.Logger) bool {
	if err := w.markCompleted(ctx, task.ID); err != nil {
		if w.rememberUnrecorded(ctx, task.ID) {
			logger.Error().Err(err).Msg("Booking confirmed on server, ledger write failed")
			task.Status = models.TaskCompleted
			task.LastError = "confirmed on server, ledger write failed"
			w.pushDeadLetter(ctx, task)
		} else {
			logger.Warn().Err(err).Msg("Ledger still rejects completed confirmation")
		}
		return false
	}
	w.forgetUnrecorded(ctx, task.ID)

	task.Status = models.TaskCompleted
	task.LastError = ""
	metrics.IncConfirmationTask(string(models.TaskCompleted))
	logger.Info().Int("retry_count", task.RetryCount).Msg("Booking confirmed on replay")
	w.publish(events.EventConfirmationRecovered, task, "")
	return true
}

func (w *ConfirmationWorker) markCompleted(ctx context.Context, id int64) error {
	writeCtx := context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= w.writeAttempts; attempt++ {
		if err = w.store.UpdateConfirmationTask(writeCtx, id, models.TaskCompleted, "", nil); err == nil {
			return nil
		}
		if attempt < w.writeAttempts && w.writeDelay > 0 {
			time.Sleep(w.writeDelay)
		}
	}
	return err
}

// rememberUnrecorded reports whether id was newly added.
func (w *ConfirmationWorker) rememberUnrecorded(ctx context.Context, id int64) bool {
	w.mu.Lock()
	_, seen := w.unrecorded[id]
	w.unrecorded[id] = struct{}{}
	w.mu.Unlock()

	if !seen && w.redis != nil {
		if err := w.redis.SAdd(context.WithoutCancel(ctx), unrecordedKey, strconv.FormatInt(id, 10)).Err(); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", id).Msg("Failed to mirror unrecorded confirmation")
		}
	}
	return !seen
}

func (w *ConfirmationWorker) isUnrecorded(ctx context.Context, id int64) bool {
	w.mu.Lock()
	_, ok := w.unrecorded[id]
	w.mu.Unlock()
	if ok || w.redis == nil {
		return ok
	}

	member, err := w.redis.SIsMember(ctx, unrecordedKey, strconv.FormatInt(id, 10)).Result()
	if err != nil {
		w.logger.Warn().Err(err).Int64("task_id", id).Msg("Failed to check unrecorded confirmations")
		return false
	}
	if member {
		w.mu.Lock()
		w.unrecorded[id] = struct{}{}
		w.mu.Unlock()
	}
	return member
}

func (w *ConfirmationWorker) forgetUnrecorded(ctx context.Context, id int64) {
	w.mu.Lock()
	_, ok := w.unrecorded[id]
	delete(w.unrecorded, id)
	w.mu.Unlock()

	if ok && w.redis != nil {
		_ = w.redis.SRem(context.WithoutCancel(ctx), unrecordedKey, strconv.FormatInt(id, 10)).Err()
	}
}

// permanent reports a server-side rejection that replaying cannot fix.
func permanent(err error) bool {
	return domain.IsConfirmation(err) || domain.IsValidation(err) || domain.IsNotFound(err)
}

func (w *ConfirmationWorker) retryOrEscalate(ctx context.Context, task *models.ConfirmationTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.escalate(ctx, task, cause)
		return
	}

	nextTime := w.retryPolicy.NextAttemptAt(time.Now(), attempt)
	if err := w.store.UpdateConfirmationTask(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to schedule confirmation retry")
		return
	}
	task.Status = models.TaskRetry
	task.RetryCount = attempt
	task.NextRetryAt = &nextTime
	metrics.IncConfirmationTask(string(models.TaskRetry))

	ev := w.logger.Warn()
	if domain.IsAuth(cause) {
		// replays keep failing until someone logs in again
		ev = w.logger.Error()
	}
	ev.Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).
		Msg("Confirmation replay failed, will retry")
}

func (w *ConfirmationWorker) escalate(ctx context.Context, task *models.ConfirmationTask, cause error) {
	if err := w.store.UpdateConfirmationTask(ctx, task.ID, models.TaskEscalated, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark confirmation task escalated")
	}
	task.Status = models.TaskEscalated
	task.LastError = cause.Error()
	metrics.IncConfirmationTask(string(models.TaskEscalated))

	w.logger.Error().Err(cause).
		Int64("task_id", task.ID).
		Str("booking_id", task.BookingID).
		Str("payment_intent_id", task.PaymentIntentID).
		Int("retry_count", task.RetryCount).
		Msg("Confirmation escalated for manual resolution")

	w.pushDeadLetter(ctx, task)
	w.publish(events.EventConfirmationEscalated, task, cause.Error())
}

func (w *ConfirmationWorker) publish(eventType string, task *models.ConfirmationTask, errMsg string) {
	if w.events == nil {
		return
	}
	payload := events.ConfirmationEventPayload{
		TaskID:          task.ID,
		BookingID:       task.BookingID,
		PaymentIntentID: task.PaymentIntentID,
		Status:          string(task.Status),
		RetryCount:      task.RetryCount,
		Error:           errMsg,
		OccurredAt:      time.Now(),
	}
	if err := w.events.PublishJSON(eventType, payload); err != nil {
		w.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish confirmation event")
	}
}

func (w *ConfirmationWorker) pushDeadLetter(ctx context.Context, task *models.ConfirmationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Failed to push dead letter")
	}
}

// DeadLetters returns tasks mirrored into Redis for operators, newest first:
// escalations and confirmations the ledger failed to record.
func DeadLetters(ctx context.Context, client *redis.Client, limit int64) ([]models.ConfirmationTask, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	raw, err := client.LRange(ctx, deadLetterKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	tasks := make([]models.ConfirmationTask, 0, len(raw))
	for _, item := range raw {
		var t models.ConfirmationTask
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
