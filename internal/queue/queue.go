// Package queue defines the publishing interface for task messages.
// The abstraction keeps the HTTP trigger independent of the concrete
// broker implementation.
package queue

import (
	"context"

	"github.com/gradstream/applicant-pipeline/internal/task"
)

// Publisher sends task messages to the durable queue. Publish returns
// only after the broker has accepted the message; errors propagate
// unchanged so the caller never believes work was scheduled when it was
// not.
type Publisher interface {
	Publish(ctx context.Context, msg task.Message) error
	Close() error
}

// NoOpPublisher discards messages. Useful for tests and for running the
// trigger without a broker.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing and returns nil.
func (n *NoOpPublisher) Publish(_ context.Context, _ task.Message) error { return nil }

// Close for NoOpPublisher does nothing and returns nil.
func (n *NoOpPublisher) Close() error { return nil }
