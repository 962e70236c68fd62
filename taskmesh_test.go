package taskmesh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/controlplane"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/orchestrator"
)

func newFactMesh(t *testing.T) *TaskMesh {
	t.Helper()
	m := New()
	require.NoError(t, m.RegisterWorker("secret_fact_agent", "Useful for getting the secret fact.",
		agent.Static("secret_fact_agent", "The secret fact is: A baby llama is called a 'Cria'.")))
	require.NoError(t, m.RegisterWorker("dumb_fact_agent", "Useful for getting random dumb facts.",
		agent.Static("dumb_fact_agent", "Llamas hum.")))
	return m
}

func TestLaunchSingle(t *testing.T) {
	m := newFactMesh(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := m.LaunchSingle(ctx, "What is the secret fact?")
	require.NoError(t, err)
	assert.Equal(t, "The secret fact is: A baby llama is called a 'Cria'.", result)

	// Each launch builds a fresh runtime, so the mesh is reusable.
	result, err = m.LaunchSingle(ctx, "Tell me a dumb fact")
	require.NoError(t, err)
	assert.Equal(t, "Llamas hum.", result)
}

func TestLaunchSingle_NoWorkers(t *testing.T) {
	_, err := New().LaunchSingle(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoWorkersAvailable)
	stage, ok := core.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, core.StageRouting, stage)
}

func TestLaunchSingle_WorkerError(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterWorker("broken", "always fails", agent.Failing("broken", "disk on fire")))

	_, err := m.LaunchSingle(context.Background(), "do it")
	require.Error(t, err)

	var execErr *core.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "disk on fire", execErr.Message)
}

func TestLaunchSingle_ChannelFactoryError(t *testing.T) {
	m := New(func(o *Options) {
		o.NewChannel = func() (channel.Channel, error) { return nil, errors.New("no broker") }
	})
	_, err := m.LaunchSingle(context.Background(), "x")
	assert.ErrorContains(t, err, "no broker")
}

func TestLaunchSingle_MultiHop(t *testing.T) {
	m := New(func(o *Options) {
		o.MaxHops = 2
		o.Decider = orchestrator.DeciderFunc(func(_ context.Context, conv *core.Conversation, _ []core.WorkerDescriptor) (orchestrator.Verdict, error) {
			if len(conv.Turns) < 3 {
				return orchestrator.Verdict{Worker: 1, Input: conv.Last().Content}, nil
			}
			return orchestrator.Verdict{Finish: true, Answer: conv.Last().Content}, nil
		})
	})
	require.NoError(t, m.RegisterWorker("draft", "writes a draft", agent.NewFuncAgent("draft",
		func(_ context.Context, task core.Task) (string, error) { return "draft of " + task.Payload, nil })))
	require.NoError(t, m.RegisterWorker("review", "reviews text", agent.NewFuncAgent("review",
		func(_ context.Context, task core.Task) (string, error) { return "reviewed " + task.Payload, nil })))

	result, err := m.LaunchSingle(context.Background(), "write a draft")
	require.NoError(t, err)
	assert.Equal(t, "reviewed draft of write a draft", result)
}

func TestRegister(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterWorker("a", "first", agent.Static("a", "x")))

	assert.ErrorIs(t, m.RegisterWorker("a", "again", agent.Static("a", "y")), controlplane.ErrDuplicateWorker)
	assert.Error(t, m.RegisterWorker("", "nameless", agent.Static("", "z")))
	assert.Error(t, m.RegisterWorker("b", "nil executor", nil))

	workers := m.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, "worker.a", workers[0].Topic)
}
