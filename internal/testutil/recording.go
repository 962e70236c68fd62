package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/core"
)

// Published is one observed Publish call.
type Published struct {
	Topic    string
	Envelope core.Envelope
}

// RecordingChannel wraps a Channel and records every successful Publish.
// A publish is recorded before it is handed to the inner channel, so a
// subscriber reacting to an envelope always finds it in the record.
type RecordingChannel struct {
	channel.Channel

	mu        sync.Mutex
	published []*record
	starts    int
	closes    int
}

type record struct {
	Published
	failed bool
}

// NewRecordingChannel wraps inner.
func NewRecordingChannel(inner channel.Channel) *RecordingChannel {
	return &RecordingChannel{Channel: inner}
}

// Start records the call and delegates.
func (r *RecordingChannel) Start(ctx context.Context) error {
	r.mu.Lock()
	r.starts++
	r.mu.Unlock()
	return r.Channel.Start(ctx)
}

// Publish delegates and records successful publishes.
func (r *RecordingChannel) Publish(ctx context.Context, topic string, env core.Envelope) error {
	rec := &record{Published: Published{Topic: topic, Envelope: env}}
	r.mu.Lock()
	r.published = append(r.published, rec)
	r.mu.Unlock()

	if err := r.Channel.Publish(ctx, topic, env); err != nil {
		r.mu.Lock()
		rec.failed = true
		r.mu.Unlock()
		return err
	}
	return nil
}

// Close records the call and delegates.
func (r *RecordingChannel) Close() error {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	return r.Channel.Close()
}

// Published returns a copy of the recorded publishes.
func (r *RecordingChannel) Published() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Published, 0, len(r.published))
	for _, rec := range r.published {
		if !rec.failed {
			out = append(out, rec.Published)
		}
	}
	return out
}

// PublishedKind returns the recorded envelopes of one kind.
func (r *RecordingChannel) PublishedKind(kind core.Kind) []Published {
	var out []Published
	for _, p := range r.Published() {
		if p.Envelope.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Starts returns how often Start was called.
func (r *RecordingChannel) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Closes returns how often Close was called.
func (r *RecordingChannel) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Receive waits for the next envelope on sub or fails after timeout.
func Receive(sub *channel.Subscription, timeout time.Duration) (core.Envelope, bool) {
	select {
	case env, ok := <-sub.Envelopes():
		return env, ok
	case <-time.After(timeout):
		return core.Envelope{}, false
	}
}
