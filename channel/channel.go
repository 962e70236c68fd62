package channel

import (
	"context"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// Channel is the transport shared by the control plane and every worker.
type Channel interface {
	// Start readies the transport (connects, pings). It must be called before
	// Publish / Subscribe on network backends; it is a no-op in memory.
	Start(ctx context.Context) error

	// Publish enqueues env for delivery to subscribers of topic. It returns
	// core.ErrChannelClosed after Close.
	Publish(ctx context.Context, topic string, env core.Envelope) error

	// Subscribe starts consuming topic. The subscription ends when ctx is
	// cancelled, Unsubscribe is called or the channel is closed; in every case
	// Envelopes() is closed (a clean end-of-sequence, not an error).
	Subscribe(ctx context.Context, topic string) (*Subscription, error)

	// Close shuts the channel down. It is idempotent.
	Close() error
}

// Subscription is a live consumer of one topic.
type Subscription struct {
	topic string
	ch    <-chan core.Envelope
	stop  func()
	once  sync.Once
}

func newSubscription(topic string, ch <-chan core.Envelope, stop func()) *Subscription {
	return &Subscription{topic: topic, ch: ch, stop: stop}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Envelopes returns the ordered stream of envelopes for the topic.
func (s *Subscription) Envelopes() <-chan core.Envelope { return s.ch }

// Unsubscribe ends the subscription. Envelopes not yet received are dropped.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
