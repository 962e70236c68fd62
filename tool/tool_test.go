package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D bool   `json:"-"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "D")
	assert.Equal(t, []string{"a"}, schema["required"])

	assert.Equal(t, "object", CreateSchema(42)["type"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0, "extra": true}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")

	// []string required lists are honoured too
	schema["required"] = []string{"x"}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
	assert.Equal(t, "sum", sumTool.Name())
	assert.Equal(t, "Add numbers", sumTool.Description())
}

func TestFunctionTool_NilParametersAndArgs(t *testing.T) {
	secret := NewFunctionTool("get_the_secret_fact", "Returns the secret fact.", nil, func(context.Context, map[string]any) (any, error) {
		return "A baby llama is called a 'Cria'.", nil
	})
	assert.Equal(t, "object", secret.Parameters()["type"])
	out, err := secret.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Cria")
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(context.Context, map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)

	custom := NewFunctionTool("custom", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, NewToolError("custom", "rate limited", "RATE_LIMIT")
	})
	_, err = custom.Call(context.Background(), nil)
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMIT", toolErr.Code)
}

func TestRegistry(t *testing.T) {
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	r := NewRegistry(
		NewFunctionTool("b", "first b", nil, noop),
		NewFunctionTool("a", "a", nil, noop),
		NewFunctionTool("b", "second b", nil, noop),
	)
	assert.Equal(t, 2, r.Len())
	list := r.List()
	assert.Equal(t, "b", list[0].Name())
	assert.Equal(t, "second b", list[0].Description())
	_, ok := r.Get("missing")
	assert.False(t, ok)
}
