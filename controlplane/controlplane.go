package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/orchestrator"
)

var (
	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("control plane not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("control plane already started")

	// ErrDuplicateWorker is returned when a worker name or topic is registered twice.
	ErrDuplicateWorker = errors.New("duplicate worker")
)

// TransitionFunc observes state changes of a submission. from is empty for
// the initial SUBMITTED state.
type TransitionFunc func(taskID string, from, to core.RunState)

// Options configures a ControlPlane.
type Options struct {
	Logger logging.Logger
	// ReplyTopic defaults to "control_plane.<uuid>".
	ReplyTopic string
	// ReplyTimeout bounds the wait for each reply. Zero waits until the
	// submission context ends.
	ReplyTimeout time.Duration
	OnTransition TransitionFunc
}

// ControlPlane routes submissions to workers and correlates their replies.
type ControlPlane struct {
	ch           channel.Channel
	orch         *orchestrator.Orchestrator
	logger       logging.Logger
	replyTopic   string
	replyTimeout time.Duration
	onTransition TransitionFunc

	mu      sync.Mutex
	workers []core.WorkerDescriptor
	pending map[string]chan core.Envelope
	sub     *channel.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a control plane on ch that routes with orch.
func New(ch channel.Channel, orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *ControlPlane {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ReplyTopic == "" {
		opts.ReplyTopic = "control_plane." + core.NewID()
	}
	if orch == nil {
		orch = orchestrator.New()
	}
	return &ControlPlane{
		ch:           ch,
		orch:         orch,
		logger:       logging.ForComponent(opts.Logger, "controlplane"),
		replyTopic:   opts.ReplyTopic,
		replyTimeout: opts.ReplyTimeout,
		onTransition: opts.OnTransition,
		pending:      make(map[string]chan core.Envelope),
	}
}

// ReplyTopic returns the topic workers answer on.
func (cp *ControlPlane) ReplyTopic() string { return cp.replyTopic }

// Register adds worker descriptors in order. Names and topics must be unique.
func (cp *ControlPlane) Register(descs ...core.WorkerDescriptor) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return err
		}
		d = d.Normalize()
		if d.Topic == cp.replyTopic {
			return fmt.Errorf("worker %s: topic %s is the reply topic", d.Name, d.Topic)
		}
		for _, w := range cp.workers {
			if w.Name == d.Name {
				return fmt.Errorf("%w: name %s", ErrDuplicateWorker, d.Name)
			}
			if w.Topic == d.Topic {
				return fmt.Errorf("%w: topic %s", ErrDuplicateWorker, d.Topic)
			}
		}
		cp.workers = append(cp.workers, d)
		cp.logger.Info("controlplane.worker.registered", "worker", d.Name, "topic", d.Topic)
	}
	return nil
}

// Workers returns a copy of the registered descriptors in registration order.
func (cp *ControlPlane) Workers() []core.WorkerDescriptor {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return append([]core.WorkerDescriptor(nil), cp.workers...)
}

// Pending returns the number of submissions waiting for a reply.
func (cp *ControlPlane) Pending() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.pending)
}

// Start subscribes to the reply topic and runs the dispatch loop. The
// subscription exists before Start returns, so no reply to a later TASK can
// be missed.
func (cp *ControlPlane) Start(ctx context.Context) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub, err := cp.ch.Subscribe(runCtx, cp.replyTopic)
	if err != nil {
		cancel()
		return fmt.Errorf("control plane subscribe %s: %w", cp.replyTopic, err)
	}
	cp.sub = sub
	cp.cancel = cancel
	cp.done = make(chan struct{})
	cp.running = true

	go cp.loop(sub, cp.done)

	cp.logger.Info("controlplane.started", "reply_topic", cp.replyTopic, "workers", len(cp.workers))
	return nil
}

// Stop ends the dispatch loop. Submissions still waiting fail with
// core.ErrChannelClosed.
func (cp *ControlPlane) Stop() error {
	cp.mu.Lock()
	if !cp.running {
		cp.mu.Unlock()
		return nil
	}
	cp.running = false
	sub, cancel, done := cp.sub, cp.cancel, cp.done
	cp.mu.Unlock()

	sub.Unsubscribe()
	cancel()
	<-done

	cp.logger.Info("controlplane.stopped", "reply_topic", cp.replyTopic)
	return nil
}

// loop delivers replies to waiting submissions.
func (cp *ControlPlane) loop(sub *channel.Subscription, done chan<- struct{}) {
	defer close(done)
	for env := range sub.Envelopes() {
		cp.deliver(env)
	}
}

func (cp *ControlPlane) deliver(env core.Envelope) {
	if env.Kind != core.KindResult && env.Kind != core.KindError {
		cp.logger.Warn("controlplane.envelope.dropped", "kind", string(env.Kind), "correlation_id", env.CorrelationID)
		return
	}

	cp.mu.Lock()
	replyCh, ok := cp.pending[env.CorrelationID]
	if ok {
		delete(cp.pending, env.CorrelationID)
	}
	cp.mu.Unlock()

	if !ok {
		cp.logger.Warn("controlplane.reply.unrecognized",
			"correlation_id", env.CorrelationID,
			"kind", string(env.Kind),
			"source", env.Source,
			"error", core.ErrUnrecognizedCorrelation.Error(),
		)
		return
	}
	replyCh <- env
}
