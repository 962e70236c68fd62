package controlplane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/internal/testutil"
	"github.com/hupe1980/taskmesh/orchestrator"
	"github.com/hupe1980/taskmesh/worker"
)

const secretFact = "The secret fact is: A baby llama is called a 'Cria'."

type harness struct {
	ch *testutil.RecordingChannel
	cp *ControlPlane
}

func newHarness(t *testing.T, orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *harness {
	t.Helper()
	ch := testutil.NewRecordingChannel(channel.NewMemoryChannel())
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Close() })

	cp := New(ch, orch, optFns...)
	require.NoError(t, cp.Start(context.Background()))
	t.Cleanup(func() { _ = cp.Stop() })
	return &harness{ch: ch, cp: cp}
}

func (h *harness) addWorker(t *testing.T, name, description string, exec core.Executor) *worker.Service {
	t.Helper()
	svc := worker.New(core.NewWorkerDescriptor(name, description), exec, h.ch)
	require.NoError(t, h.cp.Register(svc.Descriptor()))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func static(text string) core.Executor {
	return core.ExecutorFunc(func(context.Context, core.Task) (string, error) { return text, nil })
}

func TestSubmit_SecretFact(t *testing.T) {
	var (
		mu     sync.Mutex
		states []core.RunState
	)
	h := newHarness(t, nil, func(o *Options) {
		o.OnTransition = func(_ string, _, to core.RunState) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		}
	})
	h.addWorker(t, "secret_fact_agent", "Useful for getting the secret fact.", static(secretFact))
	h.addWorker(t, "dumb_fact_agent", "Useful for getting a dumb fact.", static("Llamas hum."))

	result, err := h.cp.Submit(context.Background(), "What is the secret fact?")
	require.NoError(t, err)
	assert.Contains(t, result, "Cria")

	tasks := h.ch.PublishedKind(core.KindTask)
	require.Len(t, tasks, 1)
	assert.Equal(t, "worker.secret_fact_agent", tasks[0].Topic)
	assert.Equal(t, h.cp.ReplyTopic(), tasks[0].Envelope.Source)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []core.RunState{
		core.StateSubmitted, core.StateRouted, core.StateAwaitingReply, core.StateCompleted,
	}, states)
	assert.Equal(t, 0, h.cp.Pending())
}

func TestSubmit_NoWorkers(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.cp.Submit(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoWorkersAvailable)
	stage, ok := core.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, core.StageRouting, stage)
	assert.Empty(t, h.ch.Published())
}

func TestSubmit_WorkerFailureVerbatim(t *testing.T) {
	h := newHarness(t, nil)
	h.addWorker(t, "broken", "always fails", core.ExecutorFunc(func(context.Context, core.Task) (string, error) {
		return "", errors.New("the disk is on fire: sector 7")
	}))

	_, err := h.cp.Submit(context.Background(), "do it")
	require.Error(t, err)

	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "the disk is on fire: sector 7", execErr.Message)
	assert.Equal(t, "broken", execErr.Worker)
	stage, _ := core.StageOf(err)
	assert.Equal(t, core.StageExecution, stage)

	// Control plane and channel stay usable.
	h.addWorker(t, "fine", "works", static("ok"))
	_, err = h.cp.Submit(context.Background(), "do it")
	assert.Error(t, err) // still routed to the failing worker: first candidate wins the tie
	result, err := h.cp.Submit(context.Background(), "works")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestSubmit_UnrecognizedCorrelationIsHarmless(t *testing.T) {
	h := newHarness(t, nil)
	h.addWorker(t, "echo", "echoes", core.ExecutorFunc(func(_ context.Context, task core.Task) (string, error) {
		return task.Payload, nil
	}))

	stray := testutil.NewEnvelopeBuilder().Correlation("nobody-waits-for-this").Result("ghost").Build()
	require.NoError(t, h.ch.Publish(context.Background(), h.cp.ReplyTopic(), stray))

	result, err := h.cp.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestSubmit_ExactlyOneReplyPerTask(t *testing.T) {
	h := newHarness(t, nil)
	h.addWorker(t, "flaky", "fails on odd", core.ExecutorFunc(func(_ context.Context, task core.Task) (string, error) {
		if len(task.Payload)%2 == 1 {
			return "", errors.New("odd")
		}
		return "even", nil
	}))

	for _, text := range []string{"a", "bb", "ccc", "dddd"} {
		_, _ = h.cp.Submit(context.Background(), text)
	}

	tasks := h.ch.PublishedKind(core.KindTask)
	require.Len(t, tasks, 4)
	replies := map[string]int{}
	for _, p := range h.ch.Published() {
		if p.Envelope.Kind == core.KindResult || p.Envelope.Kind == core.KindError {
			replies[p.Envelope.CorrelationID]++
		}
	}
	for _, task := range tasks {
		assert.Equal(t, 1, replies[task.Envelope.CorrelationID])
	}
}

func TestSubmit_ReplyTimeout(t *testing.T) {
	h := newHarness(t, nil, func(o *Options) { o.ReplyTimeout = 30 * time.Millisecond })
	// Registered but never started: the TASK is buffered and never answered.
	require.NoError(t, h.cp.Register(core.NewWorkerDescriptor("sleepy", "never answers")))

	_, err := h.cp.Submit(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReplyTimeout)
	stage, _ := core.StageOf(err)
	assert.Equal(t, core.StageTimeout, stage)
	assert.Equal(t, 0, h.cp.Pending())
}

func TestSubmit_CancelDropsLateReply(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.cp.Register(core.NewWorkerDescriptor("late", "answers late")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.cp.Submit(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, h.cp.Pending())

	// The worker comes up later and answers the stale task; the reply is
	// dropped and the next submission still works.
	svc := worker.New(core.NewWorkerDescriptor("late", "answers late"), static("late answer"), h.ch)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	result, err := h.cp.Submit(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "late answer", result)
}

func TestSubmit_MultiHop(t *testing.T) {
	calls := 0
	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.MaxHops = 2
		o.Decider = orchestrator.DeciderFunc(func(_ context.Context, conv *core.Conversation, _ []core.WorkerDescriptor) (orchestrator.Verdict, error) {
			calls++
			if len(conv.Turns) < 3 {
				return orchestrator.Verdict{Worker: 1, Input: "second: " + conv.Last().Content}, nil
			}
			return orchestrator.Verdict{Finish: true, Answer: conv.String()}, nil
		})
	})
	h := newHarness(t, orch)
	h.addWorker(t, "first", "first stage", static("one"))
	h.addWorker(t, "second", "second stage", core.ExecutorFunc(func(_ context.Context, task core.Task) (string, error) {
		return task.Payload + " two", nil
	}))

	result, err := h.cp.Submit(context.Background(), "first stage please")
	require.NoError(t, err)
	assert.Equal(t, "user: first stage please\nfirst: one\nsecond: second: one two", result)
	assert.Equal(t, 2, calls)

	tasks := h.ch.PublishedKind(core.KindTask)
	require.Len(t, tasks, 2)
	assert.NotEqual(t, tasks[0].Envelope.CorrelationID, tasks[1].Envelope.CorrelationID)
	assert.Equal(t, 1, tasks[1].Envelope.Hop)
}

func TestSubmit_MaxHopsExceeded(t *testing.T) {
	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.Decider = orchestrator.DeciderFunc(func(context.Context, *core.Conversation, []core.WorkerDescriptor) (orchestrator.Verdict, error) {
			return orchestrator.Verdict{Worker: 0}, nil
		})
	})
	h := newHarness(t, orch)
	h.addWorker(t, "loop", "loops forever", static("again"))

	_, err := h.cp.Submit(context.Background(), "go")
	assert.ErrorIs(t, err, core.ErrMaxHopsExceeded)
	stage, _ := core.StageOf(err)
	assert.Equal(t, core.StageRouting, stage)
}

func TestSubmit_NotStarted(t *testing.T) {
	cp := New(channel.NewMemoryChannel(), nil)
	_, err := cp.Submit(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSubmit_ChannelClosedWhileWaiting(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.cp.Register(core.NewWorkerDescriptor("silent", "never answers")))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = h.ch.Close()
	}()
	_, err := h.cp.Submit(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrChannelClosed)
	stage, _ := core.StageOf(err)
	assert.Equal(t, core.StageDispatch, stage)
}

func TestRegister_Duplicates(t *testing.T) {
	cp := New(channel.NewMemoryChannel(), nil)
	require.NoError(t, cp.Register(core.NewWorkerDescriptor("a", "")))
	assert.ErrorIs(t, cp.Register(core.NewWorkerDescriptor("a", "")), ErrDuplicateWorker)
	assert.ErrorIs(t, cp.Register(core.WorkerDescriptor{Name: "b", Topic: "worker.a"}), ErrDuplicateWorker)
	assert.Error(t, cp.Register(core.WorkerDescriptor{}))
	assert.Len(t, cp.Workers(), 1)
}

func TestStart_Twice(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.cp.Start(context.Background()), ErrAlreadyStarted)
}
