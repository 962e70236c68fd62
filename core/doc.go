// Package core provides the foundational domain types shared by every taskmesh
// component:
//
//   - Task (an immutable unit of work with a correlation id)
//   - Envelope and Kind (the transport unit on a message channel)
//   - WorkerDescriptor and Executor (what a worker is and what it runs)
//   - RoutingDecision and Conversation (orchestrator inputs / outputs)
//   - RunState (the control plane's per-task state machine)
//   - The error taxonomy (ErrChannelClosed, ErrNoWorkersAvailable, ...)
//
// The package holds no transport or orchestration logic; it exists so the
// channel, worker, orchestrator and control plane packages can exchange values
// without importing each other.
package core
