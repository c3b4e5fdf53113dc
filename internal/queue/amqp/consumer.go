package amqp

import (
	"context"
	"errors"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/worker"
)

// Processor turns one delivery body into an ack/reject decision. The
// worker satisfies it.
type Processor interface {
	Process(ctx context.Context, body []byte) worker.Disposition
}

// Consumer runs one blocking receive loop against the task queue,
// handling exactly one message at a time. Rejected messages are nacked
// without requeue; the broker never redelivers them.
type Consumer struct {
	cfg    Config
	dial   Dialer
	proc   Processor
	logger *zap.Logger
}

// NewConsumer constructs a Consumer around proc.
func NewConsumer(cfg Config, proc Processor, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		cfg:    cfg,
		dial:   DefaultDialer,
		proc:   proc,
		logger: logger,
	}
}

// Run dials the broker, declares topology, and consumes until the
// context finishes or the delivery channel closes. The connection is
// owned here and tied to the loop's lifetime.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := c.dial(c.cfg.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Warn("close consumer connection failed", zap.Error(closeErr))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := declareTopology(ch, c.cfg); err != nil {
		return err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	c.logger.Info("worker consuming",
		zap.String("queue", c.cfg.Queue),
		zap.Int("prefetch", c.cfg.Prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("deliveries channel closed unexpectedly")
			}
			c.handle(ctx, d)
		}
	}
}

// handle settles one delivery. Settlement failures are logged, not
// retried; the broker will treat an unsettled delivery as outstanding
// until the channel closes.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) {
	switch c.proc.Process(ctx, d.Body) {
	case worker.Ack:
		if err := d.Ack(false); err != nil {
			c.logger.Error("ack failed",
				zap.Uint64("delivery_tag", d.DeliveryTag),
				zap.Error(err),
			)
		}
	default:
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("nack failed",
				zap.Uint64("delivery_tag", d.DeliveryTag),
				zap.Error(err),
			)
		}
	}
}
