package domain

import (
	"context"

	"hostellite/internal/models"
)

// CredentialRepository persists the login credential per profile.
// Load returns nil, nil when nothing is stored.
type CredentialRepository interface {
	Load(ctx context.Context, profile string) (*models.Credential, error)
	Save(ctx context.Context, profile string, cred *models.Credential) error
	Delete(ctx context.Context, profile string) error
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type SessionStore interface {
	TokenSource
	Clear(ctx context.Context) error
}

type BookingAPI interface {
	CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) error
	ListUserBookings(ctx context.Context) ([]models.Booking, error)
}

type PaymentAPI interface {
	CreatePaymentIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error)
}

// PaymentPresenter drives whatever UI collects the payment and blocks until
// it reports an outcome.
type PaymentPresenter interface {
	Present(ctx context.Context, session models.PaymentSession) (models.PaymentOutcome, error)
}

type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, amount float64, hostelID, roomID string, seats int) (models.PaymentSession, error)
	PresentPaymentUI(ctx context.Context, session *models.PaymentSession) (models.PaymentOutcome, error)
}

// ConfirmationLedger keeps payments that were captured but not confirmed.
type ConfirmationLedger interface {
	RecordFailedConfirmation(ctx context.Context, req models.ConfirmBookingRequest, retryable bool, cause error) (int64, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
