package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryStatus is the terminal state of an event in the ledger
type DeliveryStatus string

const (
	StatusPending      DeliveryStatus = ""
	StatusAcknowledged DeliveryStatus = "acknowledged"
	StatusDeadLettered DeliveryStatus = "dead_lettered"
)

// Ledger records per-event processing attempts so broker redeliveries stay bounded
type Ledger interface {
	Status(ctx context.Context, eventID string) (DeliveryStatus, error)
	// BeginAttempt increments and returns the attempt number, starting at 1
	BeginAttempt(ctx context.Context, eventID string) (int, error)
	MarkAcknowledged(ctx context.Context, eventID string) error
	MarkDeadLettered(ctx context.Context, eventID string) error
}

// RedisLedger keeps the delivery ledger in Redis with a TTL per event
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger creates a Redis-backed ledger
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func attemptsKey(eventID string) string {
	return "notification:" + eventID + ":attempts"
}

func statusKey(eventID string) string {
	return "notification:" + eventID + ":status"
}

// Status returns the terminal status of the event, or StatusPending
func (l *RedisLedger) Status(ctx context.Context, eventID string) (DeliveryStatus, error) {
	status, err := l.client.Get(ctx, statusKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StatusPending, nil
		}
		return StatusPending, fmt.Errorf("failed to read delivery status: %w", err)
	}
	return DeliveryStatus(status), nil
}

// BeginAttempt atomically increments the attempt counter
func (l *RedisLedger) BeginAttempt(ctx context.Context, eventID string) (int, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, attemptsKey(eventID))
	pipe.Expire(ctx, attemptsKey(eventID), l.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	return int(incr.Val()), nil
}

// MarkAcknowledged records successful processing
func (l *RedisLedger) MarkAcknowledged(ctx context.Context, eventID string) error {
	return l.setStatus(ctx, eventID, StatusAcknowledged)
}

// MarkDeadLettered records that the event was given up on
func (l *RedisLedger) MarkDeadLettered(ctx context.Context, eventID string) error {
	return l.setStatus(ctx, eventID, StatusDeadLettered)
}

func (l *RedisLedger) setStatus(ctx context.Context, eventID string, status DeliveryStatus) error {
	if err := l.client.Set(ctx, statusKey(eventID), string(status), l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record delivery status: %w", err)
	}
	return nil
}
