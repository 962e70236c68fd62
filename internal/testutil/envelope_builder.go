package testutil

import (
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// EnvelopeBuilder provides a fluent helper for constructing envelopes in tests.
// Example:
//
//	env := NewEnvelopeBuilder().Task("hello").ReplyTo("cp").To("worker.a").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EnvelopeBuilder struct {
	env core.Envelope
}

// NewEnvelopeBuilder creates a TASK envelope builder with a fresh correlation id.
func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{env: core.Envelope{
		CorrelationID: core.NewID(),
		Kind:          core.KindTask,
		Timestamp:     time.Now().UTC(),
	}}
}

// Correlation overrides the correlation id (chainable).
func (b *EnvelopeBuilder) Correlation(id string) *EnvelopeBuilder {
	b.env.CorrelationID = id
	return b
}

// Task sets kind TASK with payload (chainable).
func (b *EnvelopeBuilder) Task(payload string) *EnvelopeBuilder {
	b.env.Kind = core.KindTask
	b.env.Payload = payload
	return b
}

// Result sets kind RESULT with payload (chainable).
func (b *EnvelopeBuilder) Result(payload string) *EnvelopeBuilder {
	b.env.Kind = core.KindResult
	b.env.Payload = payload
	return b
}

// Error sets kind ERROR with the failure text (chainable).
func (b *EnvelopeBuilder) Error(message string) *EnvelopeBuilder {
	b.env.Kind = core.KindError
	b.env.Payload = message
	return b
}

// ReplyTo sets the source (reply) topic (chainable).
func (b *EnvelopeBuilder) ReplyTo(topic string) *EnvelopeBuilder {
	b.env.Source = topic
	return b
}

// To sets the destination topic (chainable).
func (b *EnvelopeBuilder) To(topic string) *EnvelopeBuilder {
	b.env.Destination = topic
	return b
}

// Hop sets the hop index (chainable).
func (b *EnvelopeBuilder) Hop(h int) *EnvelopeBuilder {
	b.env.Hop = h
	return b
}

// Build returns the envelope.
func (b *EnvelopeBuilder) Build() core.Envelope { return b.env }
