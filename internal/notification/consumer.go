package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// HandlerFunc processes one event. Returning a Permanent error dead-letters it at once.
type HandlerFunc func(ctx context.Context, event domain.NotificationEvent) error

// Subscriptions maps event names to their handlers
type Subscriptions map[string]HandlerFunc

// Outcome is what the consumer did with a delivery
type Outcome string

const (
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeRetried      Outcome = "retried"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// deliveryCountHeader is set by quorum queues on every redelivery
const deliveryCountHeader = "x-delivery-count"

const maxUnledgered = 10000

// ErrDeliveriesClosed is returned by Run when the broker closes the deliveries channel
var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// ConsumerConfig bounds redelivery of a single event
type ConsumerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer dispatches deliveries to subscriptions and owns the retry policy.
// Each event is handled at most MaxRetries times across redeliveries, tracked by the ledger.
type Consumer struct {
	subscriptions Subscriptions
	ledger        Ledger
	cfg           ConsumerConfig
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration)

	// unledgered counts attempts per event while the ledger cannot answer
	mu         sync.Mutex
	unledgered map[string]int

	acknowledged otelmetric.Int64Counter
	retried      otelmetric.Int64Counter
	deadLettered otelmetric.Int64Counter
}

// NewConsumer creates a consumer over the given subscription table
func NewConsumer(subscriptions Subscriptions, ledger Ledger, cfg ConsumerConfig, meter otelmetric.Meter, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = observability.Meter(nil, "notifications")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	return &Consumer{
		subscriptions: subscriptions,
		ledger:        ledger,
		cfg:           cfg,
		logger:        logger,
		sleep:         sleepContext,
		unledgered:    make(map[string]int),
		acknowledged:  observability.Counter(meter, "notifications.acknowledged", "Events processed successfully", logger),
		retried:       observability.Counter(meter, "notifications.retried", "Events requeued for another attempt", logger),
		deadLettered:  observability.Counter(meter, "notifications.dead_lettered", "Events given up on", logger),
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run pumps deliveries until ctx is cancelled or the channel closes
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle runs one delivery through received -> processing -> acknowledged | retried | dead-lettered
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	var event domain.NotificationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("undecodable notification", zap.String("message_id", d.MessageId), zap.Error(err))
		return c.deadLetter(ctx, d, "", nil)
	}
	if event.ID == "" {
		event.ID = d.MessageId
	}

	log := c.logger.With(zap.String("event", event.Name), zap.String("event_id", event.ID))

	handler, ok := c.subscriptions[event.Name]
	if !ok || event.ID == "" {
		log.Error("no handler for notification")
		return c.deadLetter(ctx, d, "", log)
	}

	status, err := c.ledger.Status(ctx, event.ID)
	if err != nil {
		return c.ledgerUnavailable(ctx, d, event.ID, err, log)
	}
	switch status {
	case StatusAcknowledged:
		log.Info("duplicate delivery of processed notification")
		c.ack(d, log)
		return OutcomeAcknowledged
	case StatusDeadLettered:
		return c.deadLetter(ctx, d, "", log)
	}

	attempt, err := c.ledger.BeginAttempt(ctx, event.ID)
	if err != nil {
		return c.ledgerUnavailable(ctx, d, event.ID, err, log)
	}
	c.forgetUnledgered(event.ID)
	log = log.With(zap.Int("attempt", attempt))

	if attempt > c.cfg.MaxRetries {
		log.Error("notification retries exhausted")
		return c.deadLetter(ctx, d, event.ID, log)
	}

	if err := handler(ctx, event); err != nil {
		if IsPermanent(err) || attempt >= c.cfg.MaxRetries {
			log.Error("notification failed, dead-lettering",
				zap.Bool("permanent", IsPermanent(err)),
				zap.Error(err),
			)
			return c.deadLetter(ctx, d, event.ID, log)
		}

		log.Warn("notification failed, will retry", zap.Error(err))
		return c.retry(ctx, d, log)
	}

	if err := c.ledger.MarkAcknowledged(ctx, event.ID); err != nil {
		log.Warn("failed to record acknowledgement", zap.Error(err))
	}
	c.ack(d, log)
	c.acknowledged.Add(ctx, 1)

	return OutcomeAcknowledged
}

// ledgerUnavailable requeues without running the handler. Attempts are then counted from the
// broker's delivery count and a local tally, and the event is dead-lettered after MaxRetries.
func (c *Consumer) ledgerUnavailable(ctx context.Context, d amqp.Delivery, eventID string, err error, log *zap.Logger) Outcome {
	c.mu.Lock()
	if len(c.unledgered) >= maxUnledgered {
		clear(c.unledgered)
	}
	c.unledgered[eventID]++
	attempt := max(c.unledgered[eventID], deliveryCount(d)+1)
	c.mu.Unlock()

	log = log.With(zap.Int("attempt", attempt))

	if attempt >= c.cfg.MaxRetries {
		log.Error("delivery ledger unavailable, retries exhausted", zap.Error(err))
		c.forgetUnledgered(eventID)
		return c.deadLetter(ctx, d, "", log)
	}

	log.Warn("delivery ledger unavailable, will retry", zap.Error(err))
	return c.retry(ctx, d, log)
}

func (c *Consumer) forgetUnledgered(eventID string) {
	c.mu.Lock()
	delete(c.unledgered, eventID)
	c.mu.Unlock()
}

// deliveryCount reads how many times the broker has already delivered d
func deliveryCount(d amqp.Delivery) int {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	}
	if d.Redelivered {
		return 1
	}
	return 0
}

func (c *Consumer) ack(d amqp.Delivery, log *zap.Logger) {
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack delivery", zap.Error(err))
	}
}

func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, log *zap.Logger) Outcome {
	c.sleep(ctx, c.cfg.RetryBackoff)

	if err := d.Nack(false, true); err != nil {
		log.Error("failed to requeue delivery", zap.Error(err))
	}
	c.retried.Add(ctx, 1)

	return OutcomeRetried
}

// deadLetter rejects without requeue so the queue routes the message to its dead-letter exchange
func (c *Consumer) deadLetter(ctx context.Context, d amqp.Delivery, eventID string, log *zap.Logger) Outcome {
	if log == nil {
		log = c.logger
	}

	if eventID != "" {
		if err := c.ledger.MarkDeadLettered(ctx, eventID); err != nil {
			log.Warn("failed to record dead-letter", zap.Error(err))
		}
	}

	if err := d.Nack(false, false); err != nil {
		log.Error("failed to dead-letter delivery", zap.Error(err))
	}
	c.deadLettered.Add(ctx, 1)

	return OutcomeDeadLettered
}
