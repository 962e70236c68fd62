package orchestrator

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// Strategy picks one candidate for a task. Implementations must be
// deterministic for a fixed input and must not modify candidates.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Select returns the index of the chosen candidate. candidates is never
	// empty.
	Select(ctx context.Context, task string, candidates []core.WorkerDescriptor) (int, error)
}

// Verdict is a Decider's answer after a hop.
type Verdict struct {
	// Finish ends the submission with Answer.
	Finish bool
	Answer string
	// Worker is the candidate index to delegate to when Finish is false.
	Worker int
	// Input is the payload for the delegated hop. Empty means the original task.
	Input string
}

// Decider inspects the conversation so far and decides whether to finish or
// delegate again.
type Decider interface {
	Decide(ctx context.Context, conv *core.Conversation, candidates []core.WorkerDescriptor) (Verdict, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, conv *core.Conversation, candidates []core.WorkerDescriptor) (Verdict, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, conv *core.Conversation, candidates []core.WorkerDescriptor) (Verdict, error) {
	return f(ctx, conv, candidates)
}

// SingleHop finishes after the first worker result, returning it verbatim.
type SingleHop struct{}

// Decide implements Decider.
func (SingleHop) Decide(_ context.Context, conv *core.Conversation, _ []core.WorkerDescriptor) (Verdict, error) {
	return Verdict{Finish: true, Answer: conv.Last().Content}, nil
}
