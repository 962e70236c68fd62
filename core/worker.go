package core

import (
	"context"
	"fmt"
)

// TopicPrefix is prepended to a worker name when its descriptor has no
// explicit topic.
const TopicPrefix = "worker."

// WorkerDescriptor is the read-only view of a worker the orchestrator routes on.
// Name and Topic are unique within one run.
type WorkerDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Topic       string `json:"topic" yaml:"topic"`
	Description string `json:"description" yaml:"description"`
}

// NewWorkerDescriptor creates a descriptor using the default topic for name.
func NewWorkerDescriptor(name, description string) WorkerDescriptor {
	return WorkerDescriptor{Name: name, Topic: TopicPrefix + name, Description: description}
}

// Normalize fills a missing topic from the worker name.
func (d WorkerDescriptor) Normalize() WorkerDescriptor {
	if d.Topic == "" {
		d.Topic = TopicPrefix + d.Name
	}
	return d
}

// Validate rejects descriptors that cannot be addressed.
func (d WorkerDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("worker descriptor: name is required")
	}
	if d.Normalize().Topic == "" {
		return fmt.Errorf("worker descriptor %s: topic is required", d.Name)
	}
	return nil
}

// Executor is the capability a worker runs for each task. Implementations are
// free to call models, tools or plain code; a returned error is reported back
// to the control plane as an ERROR envelope.
type Executor interface {
	Execute(ctx context.Context, task Task) (string, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task Task) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (string, error) { return f(ctx, task) }

// RoutingDecision is produced by the orchestrator and consumed immediately by
// the control plane.
type RoutingDecision struct {
	CorrelationID string `json:"correlation_id"`
	Worker        string `json:"worker"`
	Topic         string `json:"topic"`
}
