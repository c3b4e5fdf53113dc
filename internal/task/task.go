// Package task defines the wire envelope for background task messages.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies a task variant. The set is closed; dispatch is an
// exhaustive switch with unknown kinds routed to a classified error.
type Kind string

const (
	// KindScrapeNewData requests an incremental scrape-and-load run.
	KindScrapeNewData Kind = "scrape_new_data"
	// KindRecomputeAnalytics requests a refresh of precomputed aggregates.
	KindRecomputeAnalytics Kind = "recompute_analytics"
)

// Known reports whether k names a task variant the worker dispatches.
func (k Kind) Known() bool {
	switch k {
	case KindScrapeNewData, KindRecomputeAnalytics:
		return true
	default:
		return false
	}
}

// ErrMalformed marks envelopes the consumer must drop without touching
// the database: unparseable JSON, a missing kind, or a non-object payload.
var ErrMalformed = errors.New("malformed task message")

// Message is the envelope published to the queue. Immutable once
// published; delivery is at-least-once, so handlers must be idempotent.
type Message struct {
	Kind    Kind           `json:"kind"`
	TS      time.Time      `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// New builds a Message stamped with the current UTC time.
func New(kind Kind, payload map[string]any) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		Kind:    kind,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

// Encode serializes the envelope for publishing.
func (m Message) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal task message: %w", err)
	}
	return body, nil
}

// Decode parses a delivery body into a Message. Any structural problem is
// reported as ErrMalformed; the kind itself is not validated here because
// unknown kinds are a dispatch-time error, not a parse-time one.
func Decode(body []byte) (Message, error) {
	var envelope struct {
		Kind    *string         `json:"kind"`
		TS      time.Time       `json:"ts"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if envelope.Kind == nil || *envelope.Kind == "" {
		return Message{}, fmt.Errorf("%w: missing kind", ErrMalformed)
	}

	payload := map[string]any{}
	if len(envelope.Payload) > 0 && string(envelope.Payload) != "null" {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return Message{}, fmt.Errorf("%w: payload must be a JSON object", ErrMalformed)
		}
	}

	return Message{
		Kind:    Kind(*envelope.Kind),
		TS:      envelope.TS,
		Payload: payload,
	}, nil
}
