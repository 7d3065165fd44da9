package payment

import (
	"context"
	"errors"
	"math"
	"strings"

	"hostellite/internal/domain"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
)

// Gateway opens payment sessions through the backend and hands them to a
// presenter. Major to minor unit conversion happens here and nowhere else.
type Gateway struct {
	api       domain.PaymentAPI
	presenter domain.PaymentPresenter
	currency  string
	logger    *zerolog.Logger
}

func NewGateway(api domain.PaymentAPI, presenter domain.PaymentPresenter, currency string, logger *zerolog.Logger) *Gateway {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &Gateway{
		api:       api,
		presenter: presenter,
		currency:  strings.ToLower(currency),
		logger:    logging.Component(logger, "payment"),
	}
}

// CreatePaymentSession opens a payment intent for amount (major units).
func (g *Gateway) CreatePaymentSession(ctx context.Context, amount float64, hostelID, roomID string, seats int) (models.PaymentSession, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return models.PaymentSession{}, domain.PaymentInitError{Msg: "amount must be positive"}
	}
	if hostelID == "" || roomID == "" {
		return models.PaymentSession{}, domain.PaymentInitError{Msg: "hostel and room are required"}
	}
	if seats < 1 {
		return models.PaymentSession{}, domain.PaymentInitError{Msg: "at least one seat is required"}
	}

	minor := models.ToMinorUnits(amount)
	resp, err := g.api.CreatePaymentIntent(ctx, models.PaymentIntentRequest{
		Amount:      minor,
		HostelID:    hostelID,
		RoomID:      roomID,
		SeatsBooked: seats,
		Currency:    g.currency,
	})
	if err != nil {
		return models.PaymentSession{}, domain.PaymentInitError{Msg: "create payment intent", Err: err}
	}

	session, err := models.NewPaymentSession(resp.PaymentIntentID, resp.ClientSecret, minor, g.currency)
	if err != nil {
		return models.PaymentSession{}, domain.PaymentInitError{Msg: "no client secret received from server", Err: err}
	}

	g.logger.Info().
		Str("payment_intent_id", session.ID()).
		Int64("amount_minor", minor).
		Str("currency", g.currency).
		Msg("Payment session created")
	return session, nil
}

// PresentPaymentUI blocks until the presenter reports an outcome. Presenter
// failures become an error outcome; only a missing session is returned as an error.
func (g *Gateway) PresentPaymentUI(ctx context.Context, session *models.PaymentSession) (models.PaymentOutcome, error) {
	if session == nil || !session.Ready() {
		return models.PaymentOutcome{}, domain.ErrPaymentNotReady
	}

	outcome, err := g.presenter.Present(ctx, *session)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "payment window timed out"
		}
		g.logger.Warn().Err(err).Str("payment_intent_id", session.ID()).Msg("Payment presenter failed")
		return models.PaymentOutcome{Status: models.OutcomeError, Message: msg, PaymentIntentID: session.ID()}, nil
	}

	switch outcome.Status {
	case models.OutcomeSuccess, models.OutcomeCancelled, models.OutcomeError:
	default:
		outcome = models.PaymentOutcome{Status: models.OutcomeError, Message: "unknown payment outcome " + string(outcome.Status)}
	}
	if outcome.PaymentIntentID == "" {
		outcome.PaymentIntentID = session.ID()
	}

	g.logger.Info().
		Str("payment_intent_id", outcome.PaymentIntentID).
		Str("outcome", string(outcome.Status)).
		Msg("Payment UI finished")
	return outcome, nil
}
