package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated        = "booking_created"
	EventPaymentSessionOpened  = "payment_session_opened"
	EventBookingCompleted      = "booking_completed"
	EventBookingLeftPending    = "booking_left_pending"
	EventWorkflowFailed        = "workflow_failed"
	EventConfirmationFailed    = "confirmation_failed"
	EventConfirmationRecovered = "confirmation_recovered"
	EventConfirmationEscalated = "confirmation_escalated"
)

// WorkflowEventPayload is the snapshot published on every notable workflow step.
type WorkflowEventPayload struct {
	WorkflowID      string    `json:"workflow_id"`
	BookingID       string    `json:"booking_id,omitempty"`
	HostelID        string    `json:"hostel_id,omitempty"`
	RoomID          string    `json:"room_id,omitempty"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	Amount          float64   `json:"amount,omitempty"`
	State           string    `json:"state"`
	Error           string    `json:"error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ConfirmationEventPayload describes a ledger task for escalation consumers.
type ConfirmationEventPayload struct {
	TaskID          int64     `json:"task_id"`
	BookingID       string    `json:"booking_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Status          string    `json:"status"`
	RetryCount      int       `json:"retry_count"`
	Error           string    `json:"error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Event is one published fact. ID is unique per publish and travels as the
// AMQP message id.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus is an in-process pub/sub. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	all         []EventHandler
	onError     func(event *Event, err error)
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures; by default they are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type. It runs after the
// type-specific handlers.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *EventBus) Publish(event *Event) {
	if b == nil || event == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers[event.Type])+len(b.all))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	onError := b.onError
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus drops it.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	b.Publish(&Event{Type: eventType, Payload: raw})
	return nil
}
