package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRetry     TaskStatus = "retry"
	TaskCompleted TaskStatus = "completed"
	TaskEscalated TaskStatus = "escalated"
)

// ConfirmationTask records a captured payment whose booking was not confirmed.
// Payload holds the JSON-encoded ConfirmBookingRequest.
type ConfirmationTask struct {
	ID              int64      `json:"id"`
	BookingID       string     `json:"booking_id"`
	PaymentIntentID string     `json:"payment_intent_id"`
	Payload         string     `json:"payload"`
	Status          TaskStatus `json:"status"`
	RetryCount      int        `json:"retry_count"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
}

// Request decodes the stored confirmation request.
func (t ConfirmationTask) Request() (ConfirmBookingRequest, error) {
	var req ConfirmBookingRequest
	if err := json.Unmarshal([]byte(t.Payload), &req); err != nil {
		return req, fmt.Errorf("decode task %d payload: %w", t.ID, err)
	}
	if req.PaymentIntentID == "" {
		req.PaymentIntentID = t.PaymentIntentID
	}
	if req.BookingID == "" {
		req.BookingID = t.BookingID
	}
	return req, nil
}
