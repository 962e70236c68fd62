// Package channel implements the message channel: an addressable,
// multi-topic asynchronous transport that decouples the control plane from
// worker services.
//
// All backends share the Channel interface. Publishing is fire-and-forget and
// never blocks indefinitely; subscribing yields a Subscription whose
// Envelopes() channel delivers envelopes for one topic in publish order and is
// closed when the subscription ends or the channel shuts down.
//
// Backends:
//
//   - MemoryChannel: in-process, unbounded per-topic buffers (default, tests)
//   - RedisChannel: one Redis list per topic (LPUSH / BRPOP)
//   - RabbitMQChannel: one AMQP queue per topic on the default exchange
//
// Network backends serialize envelopes with a Codec: JSON (the default, using
// the stable schema defined by core.Envelope) or CBOR with the same field
// names. Decoded envelopes that fail core.Envelope.Validate are dropped.
package channel
