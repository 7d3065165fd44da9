package booking

import (
	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// State is one variant of the workflow state. Each variant carries only the
// data valid in that state.
type State interface {
	Name() string
	Terminal() bool
	isState()
}

const (
	StageIdle                = "idle"
	StageCreatingBooking     = "creating_booking"
	StageAwaitingPaymentInit = "awaiting_payment_init"
	StageReadyForPayment     = "ready_for_payment"
	StagePaymentInProgress   = "payment_in_progress"
	StageConfirming          = "confirming"
	StageCompleted           = "completed"
	StageFailed              = "failed"
	StageCancelledByUser     = "cancelled_by_user"
)

type Idle struct{}

type CreatingBooking struct {
	Request ReservationRequest
}

type AwaitingPaymentInit struct {
	Booking models.Booking
}

type ReadyForPayment struct {
	Booking models.Booking
	Session models.PaymentSession
}

type PaymentInProgress struct {
	Booking models.Booking
	Session models.PaymentSession
}

// Confirming has an empty PaymentIntentID on the cash path.
type Confirming struct {
	Booking         models.Booking
	PaymentIntentID string
}

type Completed struct {
	Booking         models.Booking
	PaymentIntentID string
}

// CancelledByUser leaves the booking pending on the server.
type CancelledByUser struct {
	Booking models.Booking
}

// Failed is terminal. Stage names the state the failure happened in and
// Booking is set once the server has created one.
type Failed struct {
	Stage   string
	Err     error
	Message string
	Booking *models.Booking
}

func (Idle) Name() string                { return StageIdle }
func (CreatingBooking) Name() string     { return StageCreatingBooking }
func (AwaitingPaymentInit) Name() string { return StageAwaitingPaymentInit }
func (ReadyForPayment) Name() string     { return StageReadyForPayment }
func (PaymentInProgress) Name() string   { return StagePaymentInProgress }
func (Confirming) Name() string          { return StageConfirming }
func (Completed) Name() string           { return StageCompleted }
func (CancelledByUser) Name() string     { return StageCancelledByUser }
func (Failed) Name() string              { return StageFailed }

func (Idle) Terminal() bool                { return false }
func (CreatingBooking) Terminal() bool     { return false }
func (AwaitingPaymentInit) Terminal() bool { return false }
func (ReadyForPayment) Terminal() bool     { return false }
func (PaymentInProgress) Terminal() bool   { return false }
func (Confirming) Terminal() bool          { return false }
func (Completed) Terminal() bool           { return true }
func (CancelledByUser) Terminal() bool     { return true }
func (Failed) Terminal() bool              { return true }

func (Idle) isState()                {}
func (CreatingBooking) isState()     {}
func (AwaitingPaymentInit) isState() {}
func (ReadyForPayment) isState()     {}
func (PaymentInProgress) isState()   {}
func (Confirming) isState()          {}
func (Completed) isState()           {}
func (CancelledByUser) isState()     {}
func (Failed) isState()              {}

// Retryable reports whether a fresh workflow may simply try again: nothing was
// paid yet and the failure was not a rejected request.
func (f Failed) Retryable() bool {
	if f.Stage != StageCreatingBooking && f.Stage != StageAwaitingPaymentInit {
		return false
	}
	return !domain.IsValidation(f.Err)
}

// Critical reports a captured payment without a confirmed booking.
func (f Failed) Critical() bool {
	return f.Stage == StageConfirming && domain.IsConfirmation(f.Err)
}
