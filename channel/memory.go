package channel

import (
	"context"
	"sync"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// MemoryOptions configures a MemoryChannel.
type MemoryOptions struct {
	Logger logging.Logger
}

// MemoryChannel is an in-process Channel backed by unbounded per-topic
// buffers.
//
// Semantics:
//   - Publish never blocks; envelopes are appended to every current
//     subscriber's mailbox of the topic.
//   - A topic without subscribers buffers envelopes; the backlog is handed to
//     the first subscriber in publish order.
//   - Each subscriber receives every envelope published after it subscribed,
//     in publish order.
//   - Close drains: subscribers still receive what was already queued and
//     then observe a closed Envelopes() channel.
type MemoryChannel struct {
	mu     sync.Mutex
	topics map[string]*memTopic
	closed bool
	logger logging.Logger
}

type memTopic struct {
	backlog []core.Envelope
	subs    []*mailbox
}

// NewMemoryChannel creates an in-process channel.
func NewMemoryChannel(optFns ...func(o *MemoryOptions)) *MemoryChannel {
	opts := MemoryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MemoryChannel{
		topics: make(map[string]*memTopic),
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Start implements Channel; the memory channel is ready on construction.
func (c *MemoryChannel) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrChannelClosed
	}
	return nil
}

// Publish implements Channel.
func (c *MemoryChannel) Publish(ctx context.Context, topic string, env core.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return core.ErrChannelClosed
	}

	t := c.topic(topic)
	if len(t.subs) == 0 {
		t.backlog = append(t.backlog, env)
		c.logger.Debug("channel.memory.buffered", "topic", topic, "correlation_id", env.CorrelationID, "backlog", len(t.backlog))
		return nil
	}
	// Fan-out happens under c.mu so concurrent publishers observe one total
	// order per topic.
	for _, mb := range t.subs {
		mb.push(env)
	}
	return nil
}

// Subscribe implements Channel.
func (c *MemoryChannel) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, core.ErrChannelClosed
	}

	t := c.topic(topic)
	mb := newMailbox()
	if len(t.subs) == 0 && len(t.backlog) > 0 {
		mb.items = t.backlog
		t.backlog = nil
	}
	t.subs = append(t.subs, mb)
	go mb.run()

	stop := func() {
		c.remove(topic, mb)
		mb.stop()
	}
	stopAfter := context.AfterFunc(ctx, stop)

	c.logger.Debug("channel.memory.subscribed", "topic", topic, "subscribers", len(t.subs))

	sub := newSubscription(topic, mb.out, func() {
		stopAfter()
		stop()
	})
	return sub, nil
}

// Close implements Channel.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, t := range c.topics {
		for _, mb := range t.subs {
			mb.close()
		}
	}
	c.topics = make(map[string]*memTopic)
	c.logger.Debug("channel.memory.closed")
	return nil
}

// Backlog returns the number of envelopes buffered for a topic that has no
// subscriber yet.
func (c *MemoryChannel) Backlog(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.topics[topic]; ok {
		return len(t.backlog)
	}
	return 0
}

// topic returns (creating if needed) the topic state. Caller holds c.mu.
func (c *MemoryChannel) topic(name string) *memTopic {
	t, ok := c.topics[name]
	if !ok {
		t = &memTopic{}
		c.topics[name] = t
	}
	return t
}

func (c *MemoryChannel) remove(topic string, mb *mailbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.topics[topic]
	if !ok {
		return
	}
	for i, s := range t.subs {
		if s == mb {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// mailbox is an unbounded FIFO feeding one subscriber. A pump goroutine moves
// items from the slice to the out channel so publishers never block.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []core.Envelope
	closed  bool // drain remaining items, then end
	stopped bool // end immediately
	done    chan struct{}
	out     chan core.Envelope
}

func newMailbox() *mailbox {
	mb := &mailbox{done: make(chan struct{}), out: make(chan core.Envelope)}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (m *mailbox) push(env core.Envelope) {
	m.mu.Lock()
	if !m.closed && !m.stopped {
		m.items = append(m.items, env)
		m.cond.Signal()
	}
	m.mu.Unlock()
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.done)
		m.cond.Broadcast()
	}
	m.mu.Unlock()
}

func (m *mailbox) run() {
	defer close(m.out)
	for {
		m.mu.Lock()
		for len(m.items) == 0 && !m.closed && !m.stopped {
			m.cond.Wait()
		}
		if m.stopped || len(m.items) == 0 {
			m.mu.Unlock()
			return
		}
		env := m.items[0]
		m.items[0] = core.Envelope{}
		m.items = m.items[1:]
		m.mu.Unlock()

		select {
		case m.out <- env:
		case <-m.done:
			return
		}
	}
}
