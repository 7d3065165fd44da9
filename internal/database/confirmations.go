package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hostellite/internal/models"
)

// ErrTaskNotFound is returned when no confirmation task has the requested id.
var ErrTaskNotFound = errors.New("confirmation task not found")

const taskColumns = `id, booking_id, payment_intent_id, payload, status, retry_count, last_error,
              created_at, updated_at, processed_at, next_retry_at`

// RecordFailedConfirmation stores a captured payment whose booking confirmation
// failed. Retryable tasks are picked up by the reconcile worker; the rest are
// escalated straight away. Recording the same payment intent twice updates the
// existing row.
func (db *DB) RecordFailedConfirmation(ctx context.Context, req models.ConfirmBookingRequest, retryable bool, cause error) (int64, error) {
	if req.PaymentIntentID == "" {
		return 0, errors.New("payment intent id is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encode confirmation request: %w", err)
	}

	status := models.TaskPending
	if !retryable {
		status = models.TaskEscalated
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	now := time.Now().UTC()

	query := `INSERT INTO confirmation_tasks (booking_id, payment_intent_id, payload, status, retry_count, last_error, created_at, updated_at)
              VALUES (?, ?, ?, ?, 0, ?, ?, ?)
              ON CONFLICT(payment_intent_id) DO UPDATE SET
                  last_error = excluded.last_error,
                  updated_at = excluded.updated_at,
                  status = CASE WHEN confirmation_tasks.status = 'completed' THEN confirmation_tasks.status ELSE excluded.status END`
	if _, err := db.ExecContext(ctx, query, req.BookingID, req.PaymentIntentID, string(payload), status, errMsg, now, now); err != nil {
		return 0, fmt.Errorf("failed to record confirmation task: %w", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM confirmation_tasks WHERE payment_intent_id = ?`, req.PaymentIntentID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get confirmation task id: %w", err)
	}

	db.logger.Warn().
		Int64("task_id", id).
		Str("booking_id", req.BookingID).
		Str("payment_intent_id", req.PaymentIntentID).
		Str("status", string(status)).
		Msg("Confirmation task recorded")
	return id, nil
}

// GetDueConfirmationTasks returns pending and retry tasks whose backoff has elapsed, oldest first.
func (db *DB) GetDueConfirmationTasks(ctx context.Context, limit int) ([]models.ConfirmationTask, error) {
	query := `SELECT ` + taskColumns + `
              FROM confirmation_tasks
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due confirmation tasks: %w", err)
	}
	return scanTasks(rows)
}

func (db *DB) GetEscalatedTasks(ctx context.Context) ([]models.ConfirmationTask, error) {
	query := `SELECT ` + taskColumns + `
              FROM confirmation_tasks WHERE status = 'escalated' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalated tasks: %w", err)
	}
	return scanTasks(rows)
}

func (db *DB) GetConfirmationTask(ctx context.Context, id int64) (*models.ConfirmationTask, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM confirmation_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmation task: %w", err)
	}
	return &t, nil
}

// UpdateConfirmationTask moves a task to status. A retry bumps retry_count;
// completed and escalated stamp processed_at.
func (db *DB) UpdateConfirmationTask(ctx context.Context, id int64, status models.TaskStatus, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskRetry:
		query = `UPDATE confirmation_tasks SET status = ?, last_error = ?, next_retry_at = ?, updated_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	case models.TaskCompleted, models.TaskEscalated:
		query = `UPDATE confirmation_tasks SET status = ?, last_error = ?, next_retry_at = ?, updated_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, now, id}
	default:
		query = `UPDATE confirmation_tasks SET status = ?, last_error = ?, next_retry_at = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update confirmation task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CountConfirmationTasks returns the number of tasks per status.
func (db *DB) CountConfirmationTasks(ctx context.Context) (map[models.TaskStatus]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM confirmation_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmation tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s scanner) (models.ConfirmationTask, error) {
	var t models.ConfirmationTask
	err := s.Scan(
		&t.ID, &t.BookingID, &t.PaymentIntentID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
		&t.CreatedAt, &t.UpdatedAt, &t.ProcessedAt, &t.NextRetryAt,
	)
	return t, err
}

func scanTasks(rows *sql.Rows) ([]models.ConfirmationTask, error) {
	defer rows.Close()

	var tasks []models.ConfirmationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan confirmation task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
