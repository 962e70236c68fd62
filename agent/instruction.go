package agent

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, task core.Task) (string, error)
}

// ProviderFunc is a functional adapter to allow ordinary functions to be used as Providers.
type ProviderFunc func(ctx context.Context, task core.Task) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(ctx context.Context, task core.Task) (string, error) {
	return f(ctx, task)
}

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, task core.Task) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// NewInstructionFromTemplate creates an Instruction rendered per task with
// text/template. The template sees .Task (the payload), .TaskID and .Now.
//
//	agent.NewInstructionFromTemplate("Answer briefly: {{.Task}}")
func NewInstructionFromTemplate(text string) Instruction {
	return NewInstructionFromFunc(func(_ context.Context, task core.Task) (string, error) {
		return util.RenderTemplate("instruction", text, map[string]any{
			"Task":   task.Payload,
			"TaskID": task.ID,
			"Now":    task.CreatedAt,
		})
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, task core.Task) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, task)
	}
	return i.text, nil
}
