package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"hostellite/internal/api"
	"hostellite/internal/booking"
	"hostellite/internal/config"
	"hostellite/internal/database"
	"hostellite/internal/domain"
	"hostellite/internal/events"
	"hostellite/internal/export"
	"hostellite/internal/payment"
	"hostellite/internal/repository"
	"hostellite/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	in     io.Reader
	out    io.Writer

	redis     *redis.Client
	session   *session.Store
	client    *api.Client
	bus       *events.EventBus
	presenter domain.PaymentPresenter
	exporter  *export.Exporter
	db        *database.DB
}

type appOption func(*app)

// withPresenter replaces the configured payment presenter.
func withPresenter(p domain.PaymentPresenter) appOption {
	return func(a *app) { a.presenter = p }
}

func withRedis(client *redis.Client) appOption {
	return func(a *app) { a.redis = client }
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, in io.Reader, out io.Writer, opts ...appOption) (*app, error) {
	a := &app{cfg: cfg, logger: logger, in: in, out: out}
	for _, opt := range opts {
		opt(a)
	}

	if a.redis == nil {
		a.redis = initRedis(ctx, cfg, logger)
	}

	a.session = session.NewStore(credentialRepository(cfg, a.redis, logger), cfg.Session.Profile, logger)
	if err := a.session.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore session")
	}

	a.client = api.NewClient(cfg.API, a.session, logger)
	if a.redis != nil {
		a.client.UseRedisCache(a.redis, cfg.API.RoomsTTL)
	}

	a.bus = initEventBus(cfg, logger)
	if a.presenter == nil {
		a.presenter = initPresenter(cfg, in, out, logger)
	}
	a.exporter = export.NewExporter(cfg.Exports, logger)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = repository.Close(a.redis)
	}
}

// ledger opens the confirmation database on first use.
func (a *app) ledger() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.NewDB(a.cfg.Reconcile.DatabasePath, a.logger)
	if err != nil {
		a.logger.Error().Err(err).Str("db_path", a.cfg.Reconcile.DatabasePath).Msg("init database")
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) orchestrator() (*booking.Orchestrator, error) {
	db, err := a.ledger()
	if err != nil {
		return nil, err
	}
	gateway := payment.NewGateway(a.client, a.presenter, a.cfg.Payment.Currency, a.logger)
	return booking.NewOrchestrator(a.client, gateway, a.session, a.cfg.Booking, a.logger,
		booking.WithLedger(db),
		booking.WithEvents(a.bus),
	), nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Debug().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func credentialRepository(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.CredentialRepository {
	switch cfg.Session.Storage {
	case "redis":
		fallback := repository.NewMemoryCredentialRepository()
		if client == nil {
			logger.Warn().Msg("session.storage=redis but redis is unavailable, session will not persist")
			return fallback
		}
		primary := repository.NewRedisCredentialRepository(client, cfg.Session.TTL)
		return repository.NewFailoverCredentialRepository(primary, fallback, logger)
	case "memory":
		return repository.NewMemoryCredentialRepository()
	default:
		return repository.NewFileCredentialRepository(cfg.Session.Path)
	}
}

func initEventBus(cfg *config.Config, logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
	})
	bus.SubscribeAll(func(event *events.Event) error {
		logger.Debug().Str("event", event.Type).Str("event_id", event.ID).RawJSON("payload", event.Payload).Msg("event published")
		return nil
	})

	if cfg.Events.AMQPURL != "" {
		publisher := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.EscalationQueue, logger)
		bus.Subscribe(events.EventConfirmationFailed, publisher.Forward)
		bus.Subscribe(events.EventConfirmationEscalated, publisher.Forward)
	}
	return bus
}

func initPresenter(cfg *config.Config, in io.Reader, out io.Writer, logger *zerolog.Logger) domain.PaymentPresenter {
	stripePresenter := payment.NewStripePresenter(cfg.Payment.Stripe, &http.Client{Timeout: cfg.API.Timeout}, logger)
	if cfg.Payment.Presenter == "stripe" {
		return stripePresenter
	}
	return payment.NewPromptPresenter(stripePresenter, in, out, cfg.Payment.MerchantName)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
