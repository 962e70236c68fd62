package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/model"
)

func TestBuildMessages_FoldsToolResults(t *testing.T) {
	c1 := model.ToolCall{ID: "t1", Name: "a", Arguments: `{"x":1}`}
	c2 := model.ToolCall{ID: "t2", Name: "b", Arguments: ""}
	msgs := buildMessages([]model.Message{
		model.UserMessage("question"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{c1, c2}},
		model.ToolResultMessage(c1, "one", false),
		model.ToolResultMessage(c2, "two", true),
		model.AssistantMessage("done"),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "transfer_to_agent",
		Description: "hand the task to a worker",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"agent_name": map[string]any{"type": "string"}},
			"required":   []any{"agent_name"},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "transfer_to_agent", tools[0].OfTool.Name)
	assert.Equal(t, []string{"agent_name"}, tools[0].OfTool.InputSchema.Required)
}
