package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// ErrAlreadyStarted is returned when Start is called on a running service.
var ErrAlreadyStarted = errors.New("worker already started")

// Options configures a Service.
type Options struct {
	Logger logging.Logger
	// TaskTimeout bounds a single Execute call. Zero means no limit.
	TaskTimeout time.Duration
}

// Service hosts one executor on one topic. Tasks are processed one at a
// time in arrival order.
type Service struct {
	desc        core.WorkerDescriptor
	executor    core.Executor
	ch          channel.Channel
	logger      logging.Logger
	taskTimeout time.Duration

	mu      sync.Mutex
	sub     *channel.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a worker service. The descriptor's topic defaults to
// "worker.<name>".
func New(desc core.WorkerDescriptor, executor core.Executor, ch channel.Channel, optFns ...func(o *Options)) *Service {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		desc:        desc.Normalize(),
		executor:    executor,
		ch:          ch,
		logger:      logging.ForComponent(opts.Logger, "worker"),
		taskTimeout: opts.TaskTimeout,
	}
}

// Descriptor returns the routing view of the service.
func (s *Service) Descriptor() core.WorkerDescriptor { return s.desc }

// Name returns the worker name.
func (s *Service) Name() string { return s.desc.Name }

// Processed returns the number of tasks handled so far.
func (s *Service) Processed() int64 { return s.processed.Load() }

// Failed returns the number of tasks answered with an ERROR envelope.
func (s *Service) Failed() int64 { return s.failed.Load() }

// Start subscribes to the worker topic and begins processing. The
// subscription is active when Start returns, so tasks published afterwards
// are not missed.
func (s *Service) Start(ctx context.Context) error {
	if err := s.desc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub, err := s.ch.Subscribe(runCtx, s.desc.Topic)
	if err != nil {
		cancel()
		return fmt.Errorf("worker %s subscribe %s: %w", s.desc.Name, s.desc.Topic, err)
	}

	s.sub = sub
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx, sub, s.done)

	s.logger.Info("worker.started", "worker", s.desc.Name, "topic", s.desc.Topic)
	return nil
}

// Stop unsubscribes and waits for the in-flight task, if any. It is safe to
// call on a stopped service.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	sub, cancel, done := s.sub, s.cancel, s.done
	s.mu.Unlock()

	sub.Unsubscribe()
	cancel()
	<-done

	s.logger.Info("worker.stopped", "worker", s.desc.Name, "processed", s.Processed(), "failed", s.Failed())
	return nil
}

func (s *Service) loop(ctx context.Context, sub *channel.Subscription, done chan<- struct{}) {
	defer close(done)
	for env := range sub.Envelopes() {
		s.handle(ctx, env)
	}
}

// handle processes one envelope. A failing task never ends the loop.
func (s *Service) handle(ctx context.Context, env core.Envelope) {
	if env.Kind != core.KindTask {
		s.logger.Warn("worker.envelope.dropped", "worker", s.desc.Name, "kind", string(env.Kind), "correlation_id", env.CorrelationID)
		return
	}
	if env.Source == "" {
		s.logger.Warn("worker.envelope.no_reply_topic", "worker", s.desc.Name, "correlation_id", env.CorrelationID)
		return
	}

	task := core.TaskFromEnvelope(env)
	start := time.Now()
	result, err := s.execute(ctx, task)
	logging.Execution(s.logger, env.CorrelationID, s.desc.Name, time.Since(start), err)

	s.processed.Add(1)
	if err != nil {
		s.failed.Add(1)
	}

	reply := env.Reply(s.desc.Topic, result, err)
	// The reply is published even when the worker is being stopped; the
	// control plane may still be waiting for it.
	if pubErr := s.ch.Publish(context.WithoutCancel(ctx), env.Source, reply); pubErr != nil {
		s.logger.Error("worker.reply.error", "worker", s.desc.Name, "correlation_id", env.CorrelationID, "error", pubErr.Error())
		return
	}
	logging.Dispatch(s.logger, reply.CorrelationID, string(reply.Kind), env.Source, reply.Hop)
}

func (s *Service) execute(ctx context.Context, task core.Task) (result string, err error) {
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = core.NewPanicError(r)
			s.logger.Error("worker.task.panic", "worker", s.desc.Name, "correlation_id", task.ID, "recover", r)
		}
	}()

	return s.executor.Execute(ctx, task)
}
