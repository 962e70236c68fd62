package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/tool"
)

// ToolAgentOptions configures a ToolAgent.
type ToolAgentOptions struct {
	// Args derives the tool arguments from the task. The default decodes a
	// JSON object payload and otherwise passes no arguments.
	Args func(task core.Task) (map[string]any, error)
}

// ToolAgent answers every task by calling a single tool.
type ToolAgent struct {
	name string
	tool tool.Tool
	args func(task core.Task) (map[string]any, error)
}

// NewToolAgent creates an executor around t.
func NewToolAgent(name string, t tool.Tool, optFns ...func(o *ToolAgentOptions)) *ToolAgent {
	opts := ToolAgentOptions{Args: PayloadArgs}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ToolAgent{name: name, tool: t, args: opts.Args}
}

// Name returns the agent name.
func (a *ToolAgent) Name() string { return a.name }

// Execute implements core.Executor.
func (a *ToolAgent) Execute(ctx context.Context, task core.Task) (string, error) {
	args, err := a.args(task)
	if err != nil {
		return "", fmt.Errorf("tool %s arguments: %w", a.tool.Name(), err)
	}
	result, err := callTool(ctx, a.tool, args)
	if err != nil {
		return "", err
	}
	return stringify(result)
}

// PayloadArgs decodes a JSON object payload into tool arguments; any other
// payload yields an empty argument map.
func PayloadArgs(task core.Task) (map[string]any, error) {
	payload := strings.TrimSpace(task.Payload)
	if !strings.HasPrefix(payload, "{") {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// callTool invokes t converting panics into errors.
func callTool(ctx context.Context, t tool.Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewPanicError(r)
		}
	}()
	return t.Call(ctx, args)
}

func stringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
