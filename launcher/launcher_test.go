package launcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/agent"
	"github.com/hupe1980/taskmesh/channel"
	"github.com/hupe1980/taskmesh/controlplane"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/internal/testutil"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/worker"
)

func factWorkers(ch channel.Channel) []Worker {
	secret := tool.NewFunctionTool("get_the_secret_fact", "Returns the secret fact.", nil,
		func(context.Context, map[string]any) (any, error) {
			return "The secret fact is: A baby llama is called a 'Cria'.", nil
		})
	return []Worker{
		worker.New(core.NewWorkerDescriptor("secret_fact_agent", "Useful for getting the secret fact."),
			agent.NewToolAgent("secret_fact_agent", secret), ch),
		worker.New(core.NewWorkerDescriptor("dumb_fact_agent", "Useful for getting a dumb fact."),
			agent.Static("dumb_fact_agent", "Llamas can hum."), ch),
	}
}

func TestLaunchSingle_SecretFact(t *testing.T) {
	ch := testutil.NewRecordingChannel(channel.NewMemoryChannel())
	cp := controlplane.New(ch, nil)
	workers := factWorkers(ch)

	result, err := New(ch, cp, workers).LaunchSingle(context.Background(), "What is the secret fact?")
	require.NoError(t, err)
	assert.Contains(t, result, "Cria")

	assert.Equal(t, 1, ch.Starts())
	assert.Equal(t, 1, ch.Closes())
	assert.Equal(t, int64(1), workers[0].(*worker.Service).Processed())
	assert.Equal(t, int64(0), workers[1].(*worker.Service).Processed())

	assert.ErrorIs(t, ch.Publish(context.Background(), "x", core.Envelope{}), core.ErrChannelClosed)
}

func TestLaunchSingle_NoWorkers(t *testing.T) {
	ch := testutil.NewRecordingChannel(channel.NewMemoryChannel())
	cp := controlplane.New(ch, nil)

	_, err := New(ch, cp, nil).LaunchSingle(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoWorkersAvailable)
	assert.Empty(t, ch.Published())
	assert.Equal(t, 1, ch.Closes())
}

func TestLaunchSingle_FailingWorker(t *testing.T) {
	ch := testutil.NewRecordingChannel(channel.NewMemoryChannel())
	cp := controlplane.New(ch, nil)
	w := worker.New(core.NewWorkerDescriptor("broken", "always fails"), agent.Failing("broken", "out of llamas"), ch)

	_, err := New(ch, cp, []Worker{w}).LaunchSingle(context.Background(), "do something")
	require.Error(t, err)

	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "out of llamas", execErr.Message)
	stage, ok := core.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, core.StageExecution, stage)
	assert.Equal(t, 1, ch.Closes())
}

func TestLaunchSingle_SingleUse(t *testing.T) {
	ch := channel.NewMemoryChannel()
	l := New(ch, controlplane.New(ch, nil), factWorkers(ch))
	_, err := l.LaunchSingle(context.Background(), "What is the secret fact?")
	require.NoError(t, err)

	_, err = l.LaunchSingle(context.Background(), "again")
	assert.ErrorIs(t, err, ErrAlreadyLaunched)
}

type failingStartChannel struct {
	channel.Channel
	closed int
}

func (f *failingStartChannel) Start(context.Context) error { return errors.New("broker unreachable") }

func (f *failingStartChannel) Close() error {
	f.closed++
	return f.Channel.Close()
}

func TestLaunchSingle_ChannelStartFails(t *testing.T) {
	ch := &failingStartChannel{Channel: channel.NewMemoryChannel()}
	_, err := New(ch, controlplane.New(ch, nil), nil).LaunchSingle(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
	assert.Equal(t, 1, ch.closed)
}

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) Descriptor() core.WorkerDescriptor {
	return m.Called().Get(0).(core.WorkerDescriptor)
}

func (m *mockWorker) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockWorker) Stop() error { return m.Called().Error(0) }

func TestLaunchSingle_WorkerStartFailureTearsDownStarted(t *testing.T) {
	ch := channel.NewMemoryChannel()

	first := &mockWorker{}
	first.On("Descriptor").Return(core.NewWorkerDescriptor("first", "ok"))
	first.On("Start", mock.Anything).Return(nil)
	first.On("Stop").Return(errors.New("stuck"))

	second := &mockWorker{}
	second.On("Descriptor").Return(core.NewWorkerDescriptor("second", "fails"))
	second.On("Start", mock.Anything).Return(errors.New("no capacity"))

	cp := controlplane.New(ch, nil)
	_, err := New(ch, cp, []Worker{first, second}).LaunchSingle(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capacity")
	assert.Contains(t, err.Error(), "stuck")

	first.AssertCalled(t, "Stop")
	second.AssertNotCalled(t, "Stop")
	assert.Equal(t, 0, cp.Pending())
}

func TestLaunchSingle_DuplicateWorkers(t *testing.T) {
	ch := channel.NewMemoryChannel()
	a := worker.New(core.NewWorkerDescriptor("same", ""), agent.Static("same", "x"), ch)
	b := worker.New(core.NewWorkerDescriptor("same", ""), agent.Static("same", "y"), ch)

	_, err := New(ch, controlplane.New(ch, nil), []Worker{a, b}).LaunchSingle(context.Background(), "x")
	assert.ErrorIs(t, err, controlplane.ErrDuplicateWorker)
}
