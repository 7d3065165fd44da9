package booking

import (
	"context"
	"errors"

	"hostellite/internal/domain"
)

// Message turns a workflow error into text suitable for the person booking.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation domain.ValidationError
		confirm    domain.ConfirmationError
		payment    domain.PaymentError
		server     domain.ServerError
	)

	switch {
	case errors.Is(err, domain.ErrPaymentNotReady):
		return "The payment form is not ready yet. Please wait for the booking to be created."
	case errors.Is(err, domain.ErrWorkflowBusy):
		return "This booking is still being processed. Please wait."
	case errors.Is(err, domain.ErrWorkflowFinished):
		return "This booking attempt has already finished. Please start a new booking."
	case errors.As(err, &confirm):
		return "Your payment went through but we could not confirm the booking. " +
			"It has been recorded and will be resolved; please do not pay again. Payment reference: " + confirm.PaymentIntentID
	case domain.IsAuth(err):
		return "Your session has expired. Please log in again."
	case errors.As(err, &validation):
		return "Please check your booking: " + validation.Error()
	case domain.IsPaymentInit(err):
		if domain.IsNetwork(err) {
			return "Could not reach the payment service. Check your connection and try again."
		}
		return "We could not start the payment. Please try again."
	case errors.As(err, &payment):
		if payment.Msg != "" {
			return "Payment failed: " + payment.Msg
		}
		return "Payment failed. You have not been charged; please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to respond. Please try again."
	case domain.IsNetwork(err):
		return "Network error. Check your connection and try again."
	case domain.IsNotFound(err):
		return "The booking or room could not be found. It may have been removed."
	case errors.As(err, &server):
		if server.StatusCode >= 500 {
			return "The booking service is having problems. Please try again later."
		}
		if server.Msg != "" {
			return server.Msg
		}
	}

	return "Something went wrong while processing your booking. Please try again later."
}
