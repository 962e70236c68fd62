package agent

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// FuncAgent runs plain Go code for each task.
type FuncAgent struct {
	name string
	fn   func(ctx context.Context, task core.Task) (string, error)
}

// NewFuncAgent wraps fn as a named executor.
func NewFuncAgent(name string, fn func(ctx context.Context, task core.Task) (string, error)) *FuncAgent {
	return &FuncAgent{name: name, fn: fn}
}

// Name returns the agent name.
func (a *FuncAgent) Name() string { return a.name }

// Execute implements core.Executor.
func (a *FuncAgent) Execute(ctx context.Context, task core.Task) (string, error) {
	return a.fn(ctx, task)
}

// Static returns an executor that always answers with text.
func Static(name, text string) *FuncAgent {
	return NewFuncAgent(name, func(context.Context, core.Task) (string, error) { return text, nil })
}

// Failing returns an executor that always fails with message.
func Failing(name, message string) *FuncAgent {
	return NewFuncAgent(name, func(context.Context, core.Task) (string, error) {
		return "", core.NewExecutionError("", message)
	})
}
