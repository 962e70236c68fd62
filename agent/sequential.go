package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskmesh/core"
)

// SequentialAgent runs child executors one after another. Each child receives
// the previous child's result as its payload; the first failure stops the
// chain.
type SequentialAgent struct {
	name     string
	children []core.Executor
}

// NewSequentialAgent creates a sequential pipeline of executors.
func NewSequentialAgent(name string, children ...core.Executor) *SequentialAgent {
	return &SequentialAgent{name: name, children: children}
}

// Name returns the agent name.
func (s *SequentialAgent) Name() string { return s.name }

// Execute implements core.Executor.
func (s *SequentialAgent) Execute(ctx context.Context, task core.Task) (string, error) {
	current := task
	for i, child := range s.children {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := child.Execute(ctx, current)
		if err != nil {
			return "", fmt.Errorf("sequential execution failed at step %d: %w", i, err)
		}
		current.Payload = out
	}
	return current.Payload, nil
}
