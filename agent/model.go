package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/tool"
)

// ErrToolRoundsExceeded is returned when the model keeps requesting tools
// beyond MaxToolRounds.
var ErrToolRoundsExceeded = errors.New("tool rounds exceeded")

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction   Instruction
	Tools         []tool.Tool
	MaxToolRounds int
	ToolTimeout   time.Duration
	Logger        logging.Logger
}

// ModelAgent answers tasks with a language model. When tools are registered
// the model may call them; tool results are fed back until the model answers
// with plain text or MaxToolRounds is reached.
type ModelAgent struct {
	name          string
	llm           model.Model
	instruction   Instruction
	tools         *tool.Registry
	maxToolRounds int
	toolTimeout   time.Duration
	logger        logging.Logger
}

// NewModelAgent creates a new model-based agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxToolRounds: 5,
		ToolTimeout:   15 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxToolRounds < 1 {
		opts.MaxToolRounds = 1
	}

	reg := tool.NewRegistry()
	for _, t := range opts.Tools {
		reg.Add(t)
	}

	return &ModelAgent{
		name:          name,
		llm:           llm,
		instruction:   opts.Instruction,
		tools:         reg,
		maxToolRounds: opts.MaxToolRounds,
		toolTimeout:   opts.ToolTimeout,
		logger:        logging.OrNoOp(opts.Logger),
	}
}

// Name returns the agent name.
func (a *ModelAgent) Name() string { return a.name }

// RegisterTool adds a function tool to the agent's capability set.
func (a *ModelAgent) RegisterTool(t tool.Tool) { a.tools.Add(t) }

// Execute implements core.Executor.
func (a *ModelAgent) Execute(ctx context.Context, task core.Task) (string, error) {
	instructions, err := a.instruction.Resolve(ctx, task)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     []model.Message{model.UserMessage(task.Payload)},
		Tools:        a.toolDefinitions(),
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = model.ToolChoiceAuto
	}

	for round := 0; ; round++ {
		resp, err := model.Collect(ctx, a.llm, req)
		if err != nil {
			return "", fmt.Errorf("model %s: %w", a.llm.Info().Name, err)
		}
		calls := resp.Message.ToolCalls
		if len(calls) == 0 {
			return resp.Message.Content, nil
		}
		if round >= a.maxToolRounds {
			return "", fmt.Errorf("agent %s: %w", a.name, ErrToolRoundsExceeded)
		}

		req.Messages = append(req.Messages, resp.Message)
		for _, call := range calls {
			req.Messages = append(req.Messages, a.runTool(ctx, call))
		}
	}
}

// runTool executes a single tool call and returns the tool message to feed
// back to the model. Failures become error results, not agent failures.
func (a *ModelAgent) runTool(ctx context.Context, call model.ToolCall) model.Message {
	start := time.Now()
	result, err := a.executeTool(ctx, call)
	a.logger.Debug("agent.tool.executed",
		"agent", a.name,
		"tool", call.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	if err != nil {
		return model.ToolResultMessage(call, err.Error(), true)
	}
	return model.ToolResultMessage(call, result, false)
}

func (a *ModelAgent) executeTool(ctx context.Context, call model.ToolCall) (string, error) {
	impl, ok := a.tools.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("tool %s not found", call.Name)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	result, err := callTool(ctx, impl, args)
	if err != nil {
		return "", err
	}
	return stringify(result)
}

func (a *ModelAgent) toolDefinitions() []model.ToolDefinition {
	list := a.tools.List()
	defs := make([]model.ToolDefinition, 0, len(list))
	for _, t := range list {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
