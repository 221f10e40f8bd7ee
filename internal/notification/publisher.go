package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/pkg/broker"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// channel is the part of *amqp.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher sends lifecycle events to the topic exchange as persistent JSON
type Publisher struct {
	mu       sync.Mutex
	open     func() (channel, error)
	ch       channel
	exchange string
	clock    func() time.Time
	logger   *zap.Logger

	published otelmetric.Int64Counter
	failures  otelmetric.Int64Counter
}

// NewPublisher creates a publisher on its own channel of rmq
func NewPublisher(rmq *broker.RabbitMQ, exchange string, meter otelmetric.Meter, logger *zap.Logger) *Publisher {
	return newPublisher(func() (channel, error) {
		ch, err := rmq.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}, exchange, meter, logger)
}

func newPublisher(open func() (channel, error), exchange string, meter otelmetric.Meter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = observability.Meter(nil, "notifications")
	}

	return &Publisher{
		open:      open,
		exchange:  exchange,
		clock:     time.Now,
		logger:    logger,
		published: observability.Counter(meter, "notifications.published", "Events published", logger),
		failures:  observability.Counter(meter, "notifications.publish_failures", "Events that could not be published", logger),
	}
}

// Publish wraps payload in a new event and publishes it with the event name as routing key
func (p *Publisher) Publish(ctx context.Context, name string, payload domain.EventPayload) error {
	event := domain.NotificationEvent{
		ID:         uuid.New().String(),
		Name:       name,
		OccurredAt: p.clock().UTC(),
		Payload:    payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.failures.Add(ctx, 1)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Name,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	if err := p.publish(ctx, name, msg); err != nil {
		p.failures.Add(ctx, 1)
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}

	p.published.Add(ctx, 1)
	p.logger.Debug("event published", zap.String("event", name), zap.String("event_id", event.ID))

	return nil
}

// publish serializes use of the channel, reopening it if the broker closed it
func (p *Publisher) publish(ctx context.Context, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.open()
		if err != nil {
			return err
		}
		p.ch = ch
	}

	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
}

// Close closes the publisher's channel
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}
