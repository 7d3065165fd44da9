package events

import (
	"context"
	"fmt"
	"time"

	"hostellite/internal/logging"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel and returns a closer for the whole connection.
type dialFunc func(url string) (amqpChannel, func() error, error)

func dialAMQP(url string) (amqpChannel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// AMQPPublisher forwards bus events to a durable RabbitMQ queue. Escalations
// are rare, so each publish dials its own connection.
type AMQPPublisher struct {
	url     string
	queue   string
	timeout time.Duration
	dial    dialFunc
	logger  *zerolog.Logger
}

func NewAMQPPublisher(url, queue string, logger *zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		url:     url,
		queue:   queue,
		timeout: 5 * time.Second,
		dial:    dialAMQP,
		logger:  logging.Component(logger, "amqp"),
	}
}

// Forward is an EventHandler; subscribe it to the event types to export.
func (p *AMQPPublisher) Forward(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.Publish(ctx, event)
}

func (p *AMQPPublisher) Publish(ctx context.Context, event *Event) error {
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		p.logger.Error().Err(err).Str("event", event.Type).Msg("AMQP dial failed")
		return err
	}
	defer func() { _ = closeConn() }()
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Error().Err(err).Str("queue", p.queue).Msg("AMQP queue declare failed")
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.CreatedAt.UTC(),
		Body:         event.Payload,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Error().Err(err).Str("event", event.Type).Msg("AMQP publish failed")
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Info().Str("event", event.Type).Str("queue", p.queue).Msg("Event forwarded")
	return nil
}
