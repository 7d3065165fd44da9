package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hostellite/internal/domain"
	"hostellite/internal/events"
	"hostellite/internal/metrics"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
)

// Workflow drives one reservation attempt through its states. Transitions
// are serialised; an operation arriving while another runs is rejected
// rather than queued.
type Workflow struct {
	id     string
	o      *Orchestrator
	logger *zerolog.Logger

	mu      sync.Mutex
	stateMu sync.RWMutex
	state   State

	req          ReservationRequest
	booking      *models.Booking
	session      *models.PaymentSession
	confirmCalls int
}

func (w *Workflow) ID() string { return w.id }

// State returns the current state. Safe to call while another operation runs.
func (w *Workflow) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

// Reserve creates the pending booking and, for online payment, opens the
// payment session. Cash bookings complete here without any payment call.
func (w *Workflow) Reserve(ctx context.Context, req ReservationRequest) (State, error) {
	if !w.mu.TryLock() {
		return w.State(), domain.ErrWorkflowBusy
	}
	defer w.mu.Unlock()

	if _, ok := w.State().(Idle); !ok {
		return w.State(), fmt.Errorf("reserve from %s: %w", w.State().Name(), domain.ErrWorkflowFinished)
	}
	if req.Room().ID == "" {
		return w.fail(ctx, StageCreatingBooking, domain.ValidationError{Field: "reservation", Msg: "is empty"})
	}

	w.req = req
	w.logger.Info().
		Str("hostel_id", req.HostelID()).
		Str("room_id", req.Room().ID).
		Int("seats", req.Seats()).
		Int("months", req.Months()).
		Bool("clamped", req.Clamped()).
		Float64("amount", req.Amount()).
		Str("payment_method", string(req.PaymentMethod())).
		Msg("Reservation started")
	w.transition(CreatingBooking{Request: req})

	stepCtx, cancel := context.WithTimeout(ctx, w.o.cfg.StepTimeout)
	created, err := w.o.bookings.CreateBooking(stepCtx, req.createRequest())
	cancel()
	if err != nil {
		return w.fail(ctx, StageCreatingBooking, err)
	}
	w.booking = created
	w.publish(events.EventBookingCreated, "")

	if req.PaymentMethod() == models.PaymentCash {
		// pay at the hostel: nothing to charge, nothing to confirm
		w.transition(Confirming{Booking: *created})
		w.transition(Completed{Booking: *created})
		w.publish(events.EventBookingCompleted, "")
		return w.State(), nil
	}

	w.transition(AwaitingPaymentInit{Booking: *created})

	stepCtx, cancel = context.WithTimeout(ctx, w.o.cfg.StepTimeout)
	session, err := w.o.payments.CreatePaymentSession(stepCtx, req.Amount(), req.HostelID(), req.Room().ID, req.Seats())
	cancel()
	if err != nil {
		return w.fail(ctx, StageAwaitingPaymentInit, err)
	}
	if !session.Ready() {
		return w.fail(ctx, StageAwaitingPaymentInit, domain.PaymentInitError{Msg: "payment session is incomplete"})
	}

	w.session = &session
	w.transition(ReadyForPayment{Booking: *created, Session: session})
	w.publish(events.EventPaymentSessionOpened, "")
	return w.State(), nil
}

// Pay presents the cached payment session and confirms the booking on success.
// Any call outside ReadyForPayment, including one racing Reserve, returns
// ErrPaymentNotReady.
func (w *Workflow) Pay(ctx context.Context) (State, error) {
	if !w.mu.TryLock() {
		return w.State(), domain.ErrPaymentNotReady
	}
	defer w.mu.Unlock()

	ready, ok := w.State().(ReadyForPayment)
	if !ok || w.session == nil || !w.session.Ready() {
		return w.State(), domain.ErrPaymentNotReady
	}

	w.transition(PaymentInProgress{Booking: ready.Booking, Session: ready.Session})

	uiCtx, cancel := context.WithTimeout(ctx, w.o.cfg.PaymentUITimeout)
	outcome, err := w.o.payments.PresentPaymentUI(uiCtx, w.session)
	cancel()
	if err != nil {
		return w.fail(ctx, StagePaymentInProgress, domain.PaymentError{Msg: "payment UI failed", Err: err})
	}

	if !outcome.Succeeded() {
		if outcome.Status == models.OutcomeCancelled {
			w.transition(CancelledByUser{Booking: ready.Booking})
			w.publish(events.EventBookingLeftPending, "")
			w.logger.Info().Str("booking_id", ready.Booking.ID).Msg("Payment cancelled by user, booking left pending")
			return w.State(), nil
		}
		return w.fail(ctx, StagePaymentInProgress, domain.PaymentError{Msg: outcome.Message})
	}

	intentID := outcome.PaymentIntentID
	if intentID == "" {
		intentID = w.session.ID()
	}
	return w.confirm(ctx, ready.Booking, intentID)
}

// Cancel abandons the attempt before payment. The booking stays pending on
// the server; it is not cancelled there.
func (w *Workflow) Cancel(ctx context.Context) (State, error) {
	if !w.mu.TryLock() {
		return w.State(), domain.ErrWorkflowBusy
	}
	defer w.mu.Unlock()

	ready, ok := w.State().(ReadyForPayment)
	if !ok {
		return w.State(), fmt.Errorf("cancel from %s: %w", w.State().Name(), domain.ErrWorkflowFinished)
	}
	w.transition(CancelledByUser{Booking: ready.Booking})
	w.publish(events.EventBookingLeftPending, "")
	return w.State(), nil
}

func (w *Workflow) confirm(ctx context.Context, booking models.Booking, intentID string) (State, error) {
	w.transition(Confirming{Booking: booking, PaymentIntentID: intentID})

	if w.confirmCalls > 0 {
		return w.fail(ctx, StageConfirming, domain.ConfirmationError{
			BookingID: booking.ID, PaymentIntentID: intentID, Msg: "confirmation already attempted",
		})
	}
	w.confirmCalls++

	confirmReq := w.req.confirmRequest(booking.ID, intentID)
	stepCtx, cancel := context.WithTimeout(ctx, w.o.cfg.StepTimeout)
	confirmed, err := w.o.bookings.ConfirmBooking(stepCtx, confirmReq)
	cancel()
	if err != nil {
		return w.confirmationFailed(ctx, confirmReq, err)
	}

	final := booking
	if confirmed != nil {
		if confirmed.Status != "" {
			final.Status = confirmed.Status
		}
		if confirmed.PaymentStatus != "" {
			final.PaymentStatus = confirmed.PaymentStatus
		}
	}
	if final.PaymentStatus == models.PaymentPending {
		final.PaymentStatus = models.PaymentCompleted
	}

	w.booking = &final
	w.transition(Completed{Booking: final, PaymentIntentID: intentID})
	w.publish(events.EventBookingCompleted, intentID)
	return w.State(), nil
}

// confirmationFailed handles money captured without a confirmed booking. The
// failure is recorded and published; it is never dropped.
func (w *Workflow) confirmationFailed(ctx context.Context, req models.ConfirmBookingRequest, cause error) (State, error) {
	retryable := !domain.IsConfirmation(cause) && !domain.IsValidation(cause)

	var confErr domain.ConfirmationError
	if !errors.As(cause, &confErr) {
		confErr = domain.ConfirmationError{BookingID: req.BookingID, PaymentIntentID: req.PaymentIntentID, Err: cause}
	}

	if w.o.ledger != nil {
		// the caller's ctx may be what failed; the record must still land
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		taskID, err := w.o.ledger.RecordFailedConfirmation(recordCtx, req, retryable, cause)
		cancel()
		if err != nil {
			w.logger.Error().Err(err).Str("booking_id", req.BookingID).Str("payment_intent_id", req.PaymentIntentID).
				Msg("Failed to record unconfirmed payment")
		} else {
			w.logger.Warn().Int64("task_id", taskID).Bool("retryable", retryable).Msg("Unconfirmed payment recorded")
		}
	}

	w.logger.Error().Err(cause).
		Str("booking_id", req.BookingID).
		Str("payment_intent_id", req.PaymentIntentID).
		Bool("retryable", retryable).
		Msg("Payment captured but booking not confirmed")
	w.publish(events.EventConfirmationFailed, req.PaymentIntentID)

	return w.fail(ctx, StageConfirming, confErr)
}

func (w *Workflow) fail(ctx context.Context, stage string, err error) (State, error) {
	if domain.IsAuth(err) && w.o.session != nil {
		if clearErr := w.o.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			w.logger.Warn().Err(clearErr).Msg("Failed to clear session after auth error")
		}
	}

	failed := Failed{
		Stage:   stage,
		Err:     err,
		Message: Message(err),
		Booking: w.booking,
	}
	w.transition(failed)

	ev := w.logger.Warn()
	if failed.Critical() {
		ev = w.logger.Error()
	}
	ev.Err(err).Str("stage", stage).Bool("retryable", failed.Retryable()).Msg("Workflow failed")
	w.publish(events.EventWorkflowFailed, "")
	return failed, err
}

func (w *Workflow) transition(next State) {
	w.stateMu.Lock()
	prev := w.state
	w.state = next
	w.stateMu.Unlock()

	metrics.IncTransition(next.Name())
	w.logger.Debug().Str("from", prev.Name()).Str("to", next.Name()).Msg("Workflow transition")
}

func (w *Workflow) publish(eventType, paymentIntentID string) {
	if w.o.events == nil {
		return
	}
	payload := events.WorkflowEventPayload{
		WorkflowID:      w.id,
		HostelID:        w.req.HostelID(),
		RoomID:          w.req.Room().ID,
		PaymentIntentID: paymentIntentID,
		PaymentMethod:   string(w.req.PaymentMethod()),
		Amount:          w.req.Amount(),
		State:           w.State().Name(),
		OccurredAt:      time.Now(),
	}
	if w.booking != nil {
		payload.BookingID = w.booking.ID
	}
	if f, ok := w.State().(Failed); ok && f.Err != nil {
		payload.Error = f.Err.Error()
	}
	if err := w.o.events.PublishJSON(eventType, payload); err != nil {
		w.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish workflow event")
	}
}
