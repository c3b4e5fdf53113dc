package amqp

import (
	"context"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/metrics"
	"github.com/gradstream/applicant-pipeline/internal/task"
)

// Publisher sends persistent task messages to the broker. Each publish
// opens its own connection and always closes it, so a failed attempt
// leaves no partial state behind.
type Publisher struct {
	cfg    Config
	dial   Dialer
	logger *zap.Logger
}

// NewPublisher constructs a Publisher for the configured topology.
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		cfg:    cfg,
		dial:   DefaultDialer,
		logger: logger,
	}
}

// Publish serializes the message and delivers it with persistent mode.
// It returns only after the broker accepted the publish; connectivity
// and declaration failures propagate to the caller unchanged.
func (p *Publisher) Publish(ctx context.Context, msg task.Message) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		metrics.ObservePublishFailure()
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Warn("close publish connection failed", zap.Error(closeErr))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		metrics.ObservePublishFailure()
		return err
	}
	if err := declareTopology(ch, p.cfg); err != nil {
		metrics.ObservePublishFailure()
		return err
	}

	err = ch.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.TS,
			Body:         body,
		},
	)
	if err != nil {
		metrics.ObservePublishFailure()
		return fmt.Errorf("publish task: %w", err)
	}

	metrics.ObservePublish(string(msg.Kind))
	p.logger.Info("task published",
		zap.String("kind", string(msg.Kind)),
		zap.String("exchange", p.cfg.Exchange),
		zap.String("routing_key", p.cfg.RoutingKey),
	)
	return nil
}

// Close is a no-op; connections live only for the duration of one
// publish attempt.
func (p *Publisher) Close() error { return nil }
