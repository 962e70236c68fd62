package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/tool"
)

// MockExecutor for testing composite agents
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, task core.Task) (string, error) {
	args := m.Called(ctx, task.Payload)
	return args.String(0), args.Error(1)
}

func secretFactTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_the_secret_fact",
		"Returns the secret fact.",
		nil,
		func(context.Context, map[string]any) (any, error) {
			return "The secret fact is: A baby llama is called a 'Cria'.", nil
		},
	)
}

func TestFuncAgent(t *testing.T) {
	a := NewFuncAgent("upper", func(_ context.Context, task core.Task) (string, error) {
		return strings.ToUpper(task.Payload), nil
	})
	out, err := a.Execute(context.Background(), core.NewTask("hello"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	assert.Equal(t, "upper", a.Name())
}

func TestFailing_MessageVerbatim(t *testing.T) {
	_, err := Failing("broken", "boom: disk on fire").Execute(context.Background(), core.NewTask("x"))
	require.Error(t, err)
	assert.Equal(t, "boom: disk on fire", err.Error())
}

func TestStatic(t *testing.T) {
	out, err := Static("dumb_fact_agent", "Llamas hum.").Execute(context.Background(), core.NewTask("anything"))
	require.NoError(t, err)
	assert.Equal(t, "Llamas hum.", out)
}

func TestToolAgent(t *testing.T) {
	a := NewToolAgent("secret_fact_agent", secretFactTool())
	out, err := a.Execute(context.Background(), core.NewTask("What is the secret fact?"))
	require.NoError(t, err)
	assert.Contains(t, out, "Cria")
}

func TestToolAgent_JSONPayloadArgs(t *testing.T) {
	sum := tool.NewFunctionTool("sum", "adds", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"sum": args["a"].(float64) + args["b"].(float64)}, nil
	})

	out, err := NewToolAgent("calc", sum).Execute(context.Background(), core.NewTask(`{"a": 1, "b": 2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum": 3}`, out)

	_, err = NewToolAgent("calc", sum).Execute(context.Background(), core.NewTask("no json"))
	assert.Error(t, err)
}

func TestToolAgent_PanicBecomesError(t *testing.T) {
	p := tool.NewFunctionTool("explode", "panics", nil, func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	})
	_, err := NewToolAgent("x", p).Execute(context.Background(), core.NewTask(""))
	var panicErr *core.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestSequentialAgent(t *testing.T) {
	first := &MockExecutor{}
	first.On("Execute", mock.Anything, "in").Return("middle", nil)
	second := &MockExecutor{}
	second.On("Execute", mock.Anything, "middle").Return("out", nil)

	out, err := NewSequentialAgent("pipe", first, second).Execute(context.Background(), core.NewTask("in"))
	require.NoError(t, err)
	assert.Equal(t, "out", out)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestSequentialAgent_StopsOnError(t *testing.T) {
	first := &MockExecutor{}
	first.On("Execute", mock.Anything, "in").Return("", errors.New("nope"))
	second := &MockExecutor{}

	_, err := NewSequentialAgent("pipe", first, second).Execute(context.Background(), core.NewTask("in"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0")
	second.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestInstruction(t *testing.T) {
	static := NewInstructionFromText("be nice")
	assert.True(t, static.IsStatic())
	text, err := static.Resolve(context.Background(), core.NewTask("x"))
	require.NoError(t, err)
	assert.Equal(t, "be nice", text)

	dynamic := NewInstructionFromFunc(func(_ context.Context, task core.Task) (string, error) {
		return "task: " + task.Payload, nil
	})
	assert.False(t, dynamic.IsStatic())
	text, err = dynamic.Resolve(context.Background(), core.NewTask("y"))
	require.NoError(t, err)
	assert.Equal(t, "task: y", text)

	tmpl := NewInstructionFromTemplate("You answer: {{upper .Task}}")
	assert.False(t, tmpl.IsStatic())
	text, err = tmpl.Resolve(context.Background(), core.NewTask("what is a cria"))
	require.NoError(t, err)
	assert.Equal(t, "You answer: WHAT IS A CRIA", text)
}
