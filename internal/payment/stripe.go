package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"hostellite/internal/config"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// StripePresenter confirms the payment intent directly with Stripe using the
// publishable key and the session's client secret.
type StripePresenter struct {
	intents       paymentintent.Client
	paymentMethod string
	logger        *zerolog.Logger
}

func NewStripePresenter(cfg config.StripeConfig, httpClient *http.Client, logger *zerolog.Logger) *StripePresenter {
	log := logging.Component(logger, "stripe")
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     stripeLogger{log},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	return &StripePresenter{
		intents: paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.Key,
		},
		paymentMethod: cfg.PaymentMethod,
		logger:        log,
	}
}

func (p *StripePresenter) Present(ctx context.Context, session models.PaymentSession) (models.PaymentOutcome, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if p.paymentMethod != "" {
		params.PaymentMethod = stripe.String(p.paymentMethod)
	}
	params.AddExtra("client_secret", session.ClientSecret())

	intent, err := p.intents.Confirm(session.ID(), params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.PaymentOutcome{}, ctxErr
		}
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return models.PaymentOutcome{
				Status:          models.OutcomeError,
				Message:         stripeMessage(stripeErr),
				PaymentIntentID: session.ID(),
			}, nil
		}
		return models.PaymentOutcome{}, fmt.Errorf("confirm payment intent: %w", err)
	}

	return outcomeFromIntent(intent), nil
}

func outcomeFromIntent(intent *stripe.PaymentIntent) models.PaymentOutcome {
	out := models.PaymentOutcome{PaymentIntentID: intent.ID}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		out.Status = models.OutcomeSuccess
	case stripe.PaymentIntentStatusCanceled:
		out.Status = models.OutcomeCancelled
		out.Message = "payment was cancelled"
	case stripe.PaymentIntentStatusRequiresAction:
		out.Status = models.OutcomeError
		out.Message = "card requires additional authentication"
	default:
		out.Status = models.OutcomeError
		out.Message = fmt.Sprintf("payment not completed (status %s)", intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			out.Message = intent.LastPaymentError.Msg
		}
	}
	return out
}

func stripeMessage(err *stripe.Error) string {
	if err.Msg != "" {
		return err.Msg
	}
	if err.Code != "" {
		return string(err.Code)
	}
	return "payment processor error"
}

// stripeLogger routes stripe-go's internal logging into zerolog.
type stripeLogger struct {
	l *zerolog.Logger
}

func (s stripeLogger) Debugf(format string, v ...interface{}) { s.l.Debug().Msgf(format, v...) }
func (s stripeLogger) Infof(format string, v ...interface{})  { s.l.Debug().Msgf(format, v...) }
func (s stripeLogger) Warnf(format string, v ...interface{})  { s.l.Warn().Msgf(format, v...) }
func (s stripeLogger) Errorf(format string, v ...interface{}) { s.l.Error().Msgf(format, v...) }
