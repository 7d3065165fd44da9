package booking

import (
	"context"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/domain"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultStepTimeout      = 20 * time.Second
	defaultPaymentUITimeout = 10 * time.Minute
)

// Orchestrator creates booking workflows and holds their shared collaborators.
type Orchestrator struct {
	bookings domain.BookingAPI
	payments domain.PaymentGateway
	session  domain.SessionStore
	ledger   domain.ConfirmationLedger
	events   domain.EventPublisher
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

type Option func(*Orchestrator)

// WithLedger records failed confirmations for the reconcile worker.
func WithLedger(l domain.ConfirmationLedger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

func WithEvents(p domain.EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func NewOrchestrator(
	bookings domain.BookingAPI,
	payments domain.PaymentGateway,
	session domain.SessionStore,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.PaymentUITimeout <= 0 {
		cfg.PaymentUITimeout = defaultPaymentUITimeout
	}
	if cfg.MinimumStayMonths < 1 {
		cfg.MinimumStayMonths = models.MinimumStayMonths
	}
	o := &Orchestrator{
		bookings: bookings,
		payments: payments,
		session:  session,
		cfg:      cfg,
		logger:   logging.Component(logger, "booking"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MinimumStayMonths is the configured minimum stay used when building requests.
func (o *Orchestrator) MinimumStayMonths() int {
	return o.cfg.MinimumStayMonths
}

// NewWorkflow starts a fresh reservation attempt in Idle.
func (o *Orchestrator) NewWorkflow() *Workflow {
	id := uuid.NewString()
	l := o.logger.With().Str("workflow_id", id).Logger()
	return &Workflow{
		id:     id,
		o:      o,
		state:  Idle{},
		logger: &l,
	}
}

// Run reserves and, for online bookings, pays in one go. The returned state is
// always terminal unless ctx ended between the two steps.
func (o *Orchestrator) Run(ctx context.Context, req ReservationRequest) (State, error) {
	w := o.NewWorkflow()
	st, err := w.Reserve(ctx, req)
	if err != nil {
		return st, err
	}
	if _, ok := st.(ReadyForPayment); !ok {
		return st, nil
	}
	return w.Pay(ctx)
}
