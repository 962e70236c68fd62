package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_ScriptedQueueFirst(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hello", "canned")
	m.Enqueue(Response{
		Message:      Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "lookup", Arguments: "{}"}}},
		FinishReason: "tool_calls",
	})

	req := Request{Messages: []Message{UserMessage("hello")}}

	resp, err := Collect(context.Background(), m, req)
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.Message.ToolCalls[0].Name)

	resp, err = Collect(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "canned", resp.Message.Content)

	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_EchoFallback(t *testing.T) {
	m := NewMockModel("mock")
	resp, err := Collect(context.Background(), m, Request{Messages: []Message{
		UserMessage("first"),
		AssistantMessage("ignored"),
		UserMessage("  second "),
	}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: second", resp.Message.Content)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestMockModel_NoMessages(t *testing.T) {
	m := NewMockModel("mock")
	_, err := Collect(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestCollect_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, NewMockModel("mock"), Request{Messages: []Message{UserMessage("x")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage(ToolCall{ID: "c1", Name: "get"}, "42", false)
	assert.Equal(t, RoleTool, msg.Role)
	require.NotNil(t, msg.ToolResult)
	assert.Equal(t, "c1", msg.ToolResult.CallID)
	assert.Equal(t, "42", msg.ToolResult.Content)
}
