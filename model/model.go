package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoice values.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
)

// ToolCall represents a function call request surfaced by a model provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// ToolResult answers a ToolCall.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one conversational turn.
type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`  // assistant only
	ToolResult *ToolResult `json:"tool_result,omitempty"` // tool only
}

// UserMessage builds a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage builds an assistant turn.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// ToolResultMessage builds a tool turn answering call.
func ToolResultMessage(call ToolCall, content string, isError bool) Message {
	return Message{Role: RoleTool, ToolResult: &ToolResult{CallID: call.ID, Name: call.Name, Content: content, IsError: isError}}
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	ToolChoice   string           `json:"tool_choice,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final assistant turn produced for a Request.
type Response struct {
	ID           string      `json:"id"`
	Message      Message     `json:"message"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents and routing strategies.
// Generate delivers at most one Response and at most one error, then closes
// both channels.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns its final response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		last Response
		got  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			last, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		return Response{}, errors.New("model returned no response")
	}
	return last, nil
}

// MockModel is a scripted in-memory Model for tests and examples.
//
// Responses queued with Enqueue are returned in order; once the queue is empty
// AddResponse lookups keyed by the last user message apply, and finally an
// echo response is produced.
type MockModel struct {
	info Info

	mu        sync.Mutex
	queue     []Response
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted responses.
func (m *MockModel) Enqueue(resps ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)
	defer close(respCh)
	defer close(errCh)

	if err := ctx.Err(); err != nil {
		errCh <- err
		return respCh, errCh
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.queue) > 0 {
		respCh <- m.queue[0]
		m.queue = m.queue[1:]
		return respCh, errCh
	}
	if len(req.Messages) == 0 {
		errCh <- fmt.Errorf("no messages provided")
		return respCh, errCh
	}
	input := lastUserText(req.Messages)
	text, ok := m.responses[input]
	if !ok {
		text = fmt.Sprintf("Mock response to: %s", input)
	}
	respCh <- Response{Message: AssistantMessage(text), FinishReason: "stop"}
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return strings.TrimSpace(msgs[i].Content)
		}
	}
	return ""
}
