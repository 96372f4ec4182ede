package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/taskgate/internal/config"
	"github.com/ternarybob/taskgate/internal/task"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func newMockTask(t *testing.T, tags ...string) *task.Task {
	t.Helper()
	tk, err := task.New("do something", "", task.Normal, tags, nil, 0, 0, 4096)
	require.NoError(t, err)
	require.NoError(t, tk.Transition(task.Started, "admitted by scheduler"))
	return tk
}

func TestSupervisor_MockModeCompletesSuccessfully(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = true
	s := New(cfg, testLogger(), nil)

	tk := newMockTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Run(ctx, tk)

	assert.Equal(t, task.Completed, tk.State())
	require.NotNil(t, tk.ExitCode)
	assert.Equal(t, 0, *tk.ExitCode)
	assert.Contains(t, string(tk.Stdout.Bytes()), "task complete")
}

func TestSupervisor_MockFailTagProducesFailure(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = true
	s := New(cfg, testLogger(), nil)

	tk := newMockTask(t, "mock:fail")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Run(ctx, tk)

	assert.Equal(t, task.Failed, tk.State())
	require.NotNil(t, tk.ExitCode)
	assert.Equal(t, 1, *tk.ExitCode)
}

func TestSupervisor_MockTaggedWithoutGlobalMockStillMocks(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = false
	s := New(cfg, testLogger(), nil)

	tk := newMockTask(t, "mock:fail")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Run(ctx, tk)

	assert.Equal(t, task.Failed, tk.State(), "mock:fail tag alone should still trigger mock execution")
}

func TestSupervisor_MockFailWithRetryBudgetReenqueuesThenExhausts(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = true
	s := New(cfg, testLogger(), nil)

	tk, err := task.New("flaky", "", task.Normal, []string{"mock:fail"}, nil, 1, 0, 4096)
	require.NoError(t, err)
	require.NoError(t, tk.Transition(task.Started, "admitted by scheduler"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Run(ctx, tk)

	assert.Equal(t, task.Queued, tk.State(), "first failure must re-enqueue within retry budget")
	assert.Equal(t, 1, tk.RetryCount)
	assert.Contains(t, string(tk.Stdout.Bytes()), "--- retry 1 ---")

	require.NoError(t, tk.Transition(task.Started, "admitted by scheduler, attempt 2"))
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	s.Run(ctx2, tk)

	assert.Equal(t, task.Failed, tk.State(), "second failure must stick once retry budget is exhausted")
	assert.Equal(t, 1, tk.RetryCount)
}

func TestSupervisor_CancelRunningMockTaskTerminates(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = true
	s := New(cfg, testLogger(), nil)

	tk := newMockTask(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, tk)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return tk.State() == task.Running
	}, time.Second, 5*time.Millisecond, "mock task must reach RUNNING before it can be cancelled")

	require.NoError(t, s.Cancel(tk))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Cancel")
	}

	state := tk.State()
	assert.True(t, state == task.Terminated || state == task.Killed,
		"cancelling a RUNNING mock task must reach TERMINATED or KILLED, got %s", state)
}

func TestSupervisor_LiveModeWithoutAgentPathErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.AgentMock = false
	cfg.AgentCLIPath = ""
	s := New(cfg, testLogger(), nil)

	tk := newMockTask(t)
	s.Run(context.Background(), tk)

	assert.Equal(t, task.Error, tk.State())
}

func TestSupervisor_CancelQueuedTaskHasNoHandle(t *testing.T) {
	cfg := config.Defaults()
	s := New(cfg, testLogger(), nil)
	tk, err := task.New("do something", "", task.Normal, nil, nil, 0, 0, 4096)
	require.NoError(t, err)

	err = s.Cancel(tk)
	assert.Error(t, err, "QUEUED tasks have no supervisor handle")
}
