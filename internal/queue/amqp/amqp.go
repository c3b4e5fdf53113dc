// Package amqp implements the task queue over RabbitMQ: a durable
// direct exchange, a durable queue, and a fixed-routing-key binding.
package amqp

import (
	"context"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Config describes the broker topology both sides declare.
type Config struct {
	URL         string
	Exchange    string
	Queue       string
	RoutingKey  string
	Prefetch    int
	ConsumerTag string

	// DeadLetterExchange, when set, is attached to the queue as its
	// x-dead-letter-exchange so rejected messages can be captured by an
	// operator-managed DLX instead of being discarded.
	DeadLetterExchange string
}

// Channel is the slice of *amqp091.Channel the pipeline uses. Narrowing
// it here lets tests substitute a recording fake.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Connection is the slice of *amqp091.Connection the pipeline uses.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Dialer opens a broker connection. Injectable for tests.
type Dialer func(url string) (Connection, error)

// DefaultDialer connects to a real broker.
func DefaultDialer(url string) (Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return &realConnection{conn: conn}, nil
}

type realConnection struct {
	conn *amqp091.Connection
}

func (c *realConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

func (c *realConnection) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close broker connection: %w", err)
	}
	return nil
}

// declareTopology ensures the durable exchange, queue, and binding
// exist. Both publisher and consumer call it so either side can start
// first.
func declareTopology(ch Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	var args amqp091.Table
	if cfg.DeadLetterExchange != "" {
		args = amqp091.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
