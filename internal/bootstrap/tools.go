package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/taskmesh/tool"
)

// SecretFact is the answer of the get_the_secret_fact builtin.
const SecretFact = "The secret fact is: A baby llama is called a 'Cria'."

type echoArgs struct {
	Text string `json:"text" description:"Text to return unchanged"`
}

// Builtins returns the tools a configuration may reference by name.
func Builtins() *tool.Registry {
	return tool.NewRegistry(
		tool.NewFunctionTool(
			"get_the_secret_fact",
			"Returns the secret fact.",
			nil,
			func(context.Context, map[string]any) (any, error) {
				return SecretFact, nil
			},
		),
		tool.NewFunctionToolFromStruct(
			"echo",
			"Returns the given text.",
			echoArgs{},
			func(_ context.Context, args map[string]any) (any, error) {
				return fmt.Sprint(args["text"]), nil
			},
		),
		tool.NewFunctionTool(
			"current_time",
			"Returns the current UTC time in RFC 3339 format.",
			nil,
			func(context.Context, map[string]any) (any, error) {
				return time.Now().UTC().Format(time.RFC3339), nil
			},
		),
	)
}

func lookupTools(reg *tool.Registry, names []string) ([]tool.Tool, error) {
	tools := make([]tool.Tool, 0, len(names))
	var missing []string
	for _, n := range names {
		t, ok := reg.Get(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		tools = append(tools, t)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown tools: %s", strings.Join(missing, ", "))
	}
	return tools, nil
}
