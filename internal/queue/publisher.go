package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/task-manager/internal/logger"
)

// DefaultDialTimeout bounds connecting to the broker and the AMQP
// handshake for a single publish.
const DefaultDialTimeout = 2 * time.Second

// Publisher publishes user events to a durable RabbitMQ queue. A connection
// is dialed per publish; events are rare (registration, deletion) so a
// long-lived channel is not worth the reconnect handling.
type Publisher struct {
	url         string
	queue       string
	log         *slog.Logger
	dialTimeout time.Duration
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithDialTimeout overrides DefaultDialTimeout.
func WithDialTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.dialTimeout = d }
}

// NewPublisher returns a Publisher for the given broker URL and queue.
func NewPublisher(url, queue string, log *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{url: url, queue: queue, log: log, dialTimeout: DefaultDialTimeout}
	for _, o := range opts {
		o(p)
	}
	return p
}

// timeoutFor returns the smaller of the configured timeout and the time
// left before ctx expires.
func (p *Publisher) timeoutFor(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	d, err := p.timeoutFor(ctx)
	if err != nil {
		return nil, err
	}
	return amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(d),
	})
}

// PublishUserEvent publishes ev as a persistent JSON message. Errors are
// logged and returned so the caller can choose to ignore them.
func (p *Publisher) PublishUserEvent(ctx context.Context, ev UserEvent) error {
	log := p.log.With(slog.String("op", "queue.PublishUserEvent"), slog.String("type", ev.Type))

	conn, err := p.dial(ctx)
	if err != nil {
		log.Error("rabbitmq dial failed", logger.Err(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbitmq channel open failed", logger.Err(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		log.Error("rabbitmq queue declare failed", logger.Err(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		log.Error("rabbitmq publish failed", logger.Err(err))
		return err
	}
	return nil
}

// NopPublisher drops events. It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishUserEvent(context.Context, UserEvent) error { return nil }
