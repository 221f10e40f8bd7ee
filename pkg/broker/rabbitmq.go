package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const deliveryLimitArg = "x-delivery-limit"

// Topology names the exchanges and queues used for notification events
type Topology struct {
	Exchange           string
	Queue              string
	DeadLetterExchange string
	DeadLetterQueue    string
	RoutingKeys        []string
	// DeliveryLimit > 0 declares Queue as a quorum queue that dead-letters a message after that many redeliveries
	DeliveryLimit int
}

// RabbitMQ represents a RabbitMQ connection
type RabbitMQ struct {
	Conn *amqp.Connection

	url string
	mu  sync.Mutex
}

// NewRabbitMQ dials the broker
func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	return &RabbitMQ{Conn: conn, url: url}, nil
}

// Channel opens a new channel on the shared connection, redialling first if the connection was lost
func (r *RabbitMQ) Channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Conn == nil || r.Conn.IsClosed() {
		conn, err := amqp.Dial(r.url)
		if err != nil {
			return nil, fmt.Errorf("failed to reconnect to rabbitmq: %w", err)
		}
		r.Conn = conn
	}

	ch, err := r.Conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// Declare creates the exchanges, queues and bindings of t. It is idempotent.
// The work queue dead-letters rejected messages to the dead-letter exchange.
func (r *RabbitMQ) Declare(t Topology) error {
	ch, err := r.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", t.Exchange, err)
	}
	if err := ch.ExchangeDeclare(t.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", t.DeadLetterExchange, err)
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(t.DeadLetterQueue, "#", t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", t.DeadLetterQueue, err)
	}

	args := amqp.Table{"x-dead-letter-exchange": t.DeadLetterExchange}
	if t.DeliveryLimit > 0 {
		args[amqp.QueueTypeArg] = amqp.QueueTypeQuorum
		args[deliveryLimitArg] = t.DeliveryLimit
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.Queue, err)
	}
	for _, key := range t.RoutingKeys {
		if err := ch.QueueBind(t.Queue, key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", t.Queue, key, err)
		}
	}

	return nil
}

// Ping reports whether the connection is still open
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Conn == nil || r.Conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Conn == nil || r.Conn.IsClosed() {
		return nil
	}
	return r.Conn.Close()
}
