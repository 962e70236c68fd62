// Package taskmesh provides a high-level façade over the channel, worker,
// orchestrator, control plane and launcher packages. Most applications
// interact with this package by:
//  1. Creating a TaskMesh via New() (optionally overriding the channel,
//     routing strategy or logger)
//  2. Registering one or more workers, each a name, a description the
//     orchestrator routes on, and an executor
//  3. Calling LaunchSingle with the task text
//
// Every LaunchSingle call builds a fresh channel, control plane and set of
// worker services, runs one submission and tears everything down again.
package taskmesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/controlplane"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/launcher"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/orchestrator"
	"github.com/hupe1980/taskmesh/worker"
)

// Options configures the TaskMesh instance.
type Options struct {
	// NewChannel creates the transport for one launch. Defaults to an
	// in-memory channel.
	NewChannel func() (channel.Channel, error)

	// Strategy picks the first worker. Defaults to lexical matching.
	Strategy orchestrator.Strategy
	// Decider chooses between finishing and another hop. Defaults to
	// finishing after the first reply.
	Decider orchestrator.Decider
	MaxHops int

	// ReplyTimeout bounds the wait for each worker reply. Zero waits until
	// the launch context ends.
	ReplyTimeout time.Duration
	// TaskTimeout bounds a single executor call inside a worker.
	TaskTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

type registration struct {
	desc     core.WorkerDescriptor
	executor core.Executor
}

// TaskMesh is the high-level façade aggregating one run's participants.
type TaskMesh struct {
	opts Options

	mu      sync.Mutex
	workers []registration
}

// New creates a new TaskMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		NewChannel: func() (channel.Channel, error) { return channel.NewMemoryChannel(), nil },
		MaxHops:    1,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &TaskMesh{opts: opts}
}

// RegisterWorker adds a worker hosted on the default topic "worker.<name>".
func (m *TaskMesh) RegisterWorker(name, description string, executor core.Executor) error {
	return m.Register(core.NewWorkerDescriptor(name, description), executor)
}

// Register adds a worker with an explicit descriptor.
func (m *TaskMesh) Register(desc core.WorkerDescriptor, executor core.Executor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if executor == nil {
		return fmt.Errorf("worker %s: executor is required", desc.Name)
	}
	desc = desc.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.workers {
		if r.desc.Name == desc.Name || r.desc.Topic == desc.Topic {
			return fmt.Errorf("%w: %s", controlplane.ErrDuplicateWorker, desc.Name)
		}
	}
	m.workers = append(m.workers, registration{desc: desc, executor: executor})
	return nil
}

// Workers returns the registered descriptors in registration order.
func (m *TaskMesh) Workers() []core.WorkerDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.WorkerDescriptor, len(m.workers))
	for i, r := range m.workers {
		out[i] = r.desc
	}
	return out
}

// LaunchSingle runs text through the registered workers and returns the
// final result.
func (m *TaskMesh) LaunchSingle(ctx context.Context, text string) (string, error) {
	ch, err := m.opts.NewChannel()
	if err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}

	orch := orchestrator.New(func(o *orchestrator.Options) {
		if m.opts.Strategy != nil {
			o.Strategy = m.opts.Strategy
		}
		if m.opts.Decider != nil {
			o.Decider = m.opts.Decider
		}
		o.MaxHops = m.opts.MaxHops
		o.Logger = m.opts.Logger
	})
	cp := controlplane.New(ch, orch, func(o *controlplane.Options) {
		o.Logger = m.opts.Logger
		o.ReplyTimeout = m.opts.ReplyTimeout
	})

	m.mu.Lock()
	workers := make([]launcher.Worker, len(m.workers))
	for i, r := range m.workers {
		workers[i] = worker.New(r.desc, r.executor, ch, func(o *worker.Options) {
			o.Logger = m.opts.Logger
			o.TaskTimeout = m.opts.TaskTimeout
		})
	}
	m.mu.Unlock()

	return launcher.New(ch, cp, workers, func(o *launcher.Options) {
		o.Logger = m.opts.Logger
	}).LaunchSingle(ctx, text)
}
