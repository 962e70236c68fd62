package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/model"
)

// Tool names offered to the routing model.
const (
	TransferToolName = "transfer_to_agent"
	FinishToolName   = "finish"
)

// ModelStrategyOptions configures a ModelStrategy.
type ModelStrategyOptions struct {
	// Instruction prefixes the generated routing prompt.
	Instruction string
}

// ModelStrategy lets a language model pick the worker by calling the
// transfer_to_agent tool. It also implements Decider: after a hop the model
// either calls finish with the final answer or transfers again.
//
// When the model names no known worker the first candidate is used, so a
// misbehaving model never stalls a submission.
type ModelStrategy struct {
	llm         model.Model
	instruction string
}

// NewModelStrategy creates a model-backed strategy.
func NewModelStrategy(llm model.Model, optFns ...func(o *ModelStrategyOptions)) *ModelStrategy {
	opts := ModelStrategyOptions{
		Instruction: "You are an orchestrator. Pick the single agent best suited for the task.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelStrategy{llm: llm, instruction: opts.Instruction}
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return "model:" + s.llm.Info().Name }

// Select implements Strategy.
func (s *ModelStrategy) Select(ctx context.Context, task string, candidates []core.WorkerDescriptor) (int, error) {
	resp, err := model.Collect(ctx, s.llm, model.Request{
		Instructions: s.instruction + "\n\n" + describe(candidates),
		Messages:     []model.Message{model.UserMessage(task)},
		Tools:        []model.ToolDefinition{transferTool(candidates, false)},
		ToolChoice:   model.ToolChoiceRequired,
	})
	if err != nil {
		return 0, fmt.Errorf("routing model: %w", err)
	}
	for _, call := range resp.Message.ToolCalls {
		if call.Name != TransferToolName {
			continue
		}
		args := parseArgs(call.Arguments)
		if idx := indexOf(candidates, args["agent_name"]); idx >= 0 {
			return idx, nil
		}
	}
	if idx := mentioned(candidates, resp.Message.Content); idx >= 0 {
		return idx, nil
	}
	return 0, nil
}

// Decide implements Decider.
func (s *ModelStrategy) Decide(ctx context.Context, conv *core.Conversation, candidates []core.WorkerDescriptor) (Verdict, error) {
	last := conv.Last().Content
	resp, err := model.Collect(ctx, s.llm, model.Request{
		Instructions: s.instruction + "\n\n" + describe(candidates) +
			"\n\nCall finish with the final answer when the conversation answers the task, " +
			"otherwise transfer to the next agent.",
		Messages: []model.Message{model.UserMessage(conv.String())},
		Tools: []model.ToolDefinition{
			transferTool(candidates, true),
			{
				Name:        FinishToolName,
				Description: "Finish the task with a final answer for the user.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"answer": map[string]any{"type": "string", "description": "The final answer."},
					},
					"required": []string{"answer"},
				},
			},
		},
		ToolChoice: model.ToolChoiceRequired,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("routing model: %w", err)
	}

	for _, call := range resp.Message.ToolCalls {
		args := parseArgs(call.Arguments)
		switch call.Name {
		case FinishToolName:
			answer := args["answer"]
			if answer == "" {
				answer = last
			}
			return Verdict{Finish: true, Answer: answer}, nil
		case TransferToolName:
			idx := indexOf(candidates, args["agent_name"])
			if idx < 0 {
				continue
			}
			return Verdict{Worker: idx, Input: args["input"]}, nil
		}
	}
	return Verdict{Finish: true, Answer: last}, nil
}

func transferTool(candidates []core.WorkerDescriptor, withInput bool) model.ToolDefinition {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	props := map[string]any{
		"agent_name": map[string]any{
			"type":        "string",
			"enum":        names,
			"description": "Name of the agent that should handle the task.",
		},
	}
	if withInput {
		props["input"] = map[string]any{
			"type":        "string",
			"description": "Task text for the agent. Leave empty to forward the original task.",
		}
	}
	return model.ToolDefinition{
		Name:        TransferToolName,
		Description: "Transfer the task to one of the available agents.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"agent_name"},
		},
	}
}

func describe(candidates []core.WorkerDescriptor) string {
	var b strings.Builder
	b.WriteString("Available agents:")
	for _, c := range candidates {
		fmt.Fprintf(&b, "\n- %s: %s", c.Name, c.Description)
	}
	return b.String()
}

func parseArgs(raw string) map[string]string {
	out := map[string]string{}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return out
	}
	for k, v := range decoded {
		if s, ok := v.(string); ok {
			out[k] = strings.TrimSpace(s)
		}
	}
	return out
}

func indexOf(candidates []core.WorkerDescriptor, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range candidates {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// mentioned returns the first candidate whose name occurs in text.
func mentioned(candidates []core.WorkerDescriptor, text string) int {
	lower := strings.ToLower(text)
	for i, c := range candidates {
		if c.Name != "" && strings.Contains(lower, strings.ToLower(c.Name)) {
			return i
		}
	}
	return -1
}
