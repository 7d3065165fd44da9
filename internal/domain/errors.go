package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotReady  = errors.New("payment session is not ready")
	ErrWorkflowFinished = errors.New("workflow already finished")
	ErrWorkflowBusy     = errors.New("workflow is busy with another step")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ValidationError is a request the client or the server refused as malformed.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return "validation error"
	}
}

func (e ValidationError) Unwrap() error { return e.Err }

// AuthError means the credential is missing, expired or was refused with 401.
type AuthError struct {
	Msg string
	Err error
}

func (e AuthError) Error() string {
	if e.Msg != "" {
		return "unauthorized: " + e.Msg
	}
	return "unauthorized"
}

func (e AuthError) Unwrap() error {
	if e.Err == nil {
		return ErrNotAuthenticated
	}
	return e.Err
}

// NetworkError wraps transport failures and timeouts. The outcome of the
// request on the server is unknown.
type NetworkError struct {
	Op  string
	Err error
}

func (e NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e NetworkError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource != "" && e.ID != "":
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	case e.Resource != "":
		return fmt.Sprintf("%s not found", e.Resource)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "not found"
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ServerError covers any other non-2xx response.
type ServerError struct {
	StatusCode int
	Msg        string
	Err        error
}

func (e ServerError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("server error %d", e.StatusCode)
}

func (e ServerError) Unwrap() error { return e.Err }

// PaymentInitError means no payment session could be opened.
type PaymentInitError struct {
	Msg string
	Err error
}

func (e PaymentInitError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("payment init failed: %s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return "payment init failed: " + e.Msg
	case e.Err != nil:
		return fmt.Sprintf("payment init failed: %v", e.Err)
	default:
		return "payment init failed"
	}
}

func (e PaymentInitError) Unwrap() error { return e.Err }

// PaymentError is a payment the processor or the UI reported as failed.
type PaymentError struct {
	Msg string
	Err error
}

func (e PaymentError) Error() string {
	if e.Msg != "" {
		return "payment failed: " + e.Msg
	}
	return "payment failed"
}

func (e PaymentError) Unwrap() error { return e.Err }

// ConfirmationError means money may have been captured without a confirmed booking.
type ConfirmationError struct {
	BookingID       string
	PaymentIntentID string
	Msg             string
	Err             error
}

func (e ConfirmationError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("booking %s not confirmed after payment %s: %s", e.BookingID, e.PaymentIntentID, msg)
}

func (e ConfirmationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsAuth(err error) bool {
	var target AuthError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target NetworkError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsServer(err error) bool {
	var target ServerError
	return errors.As(err, &target)
}

func IsPaymentInit(err error) bool {
	var target PaymentInitError
	return errors.As(err, &target)
}

func IsPayment(err error) bool {
	var target PaymentError
	return errors.As(err, &target)
}

func IsConfirmation(err error) bool {
	var target ConfirmationError
	return errors.As(err, &target)
}
