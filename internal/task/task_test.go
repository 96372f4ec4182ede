package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T, deps ...string) *Task {
	t.Helper()
	tk, err := New("do the thing", "", Normal, nil, deps, 0, 0, 4096)
	require.NoError(t, err)
	return tk
}

func TestNew_RejectsEmptyDescription(t *testing.T) {
	_, err := New("", "/tmp", Normal, nil, nil, 0, 0, 4096)
	assert.Error(t, err)
}

func TestNew_DefaultsProjectPathToActiveSentinel(t *testing.T) {
	tk := newTestTask(t)
	assert.Equal(t, ActiveProjectSentinel, tk.ProjectPath)
}

func TestTransition_EnforcesLegalGraphAndHistory(t *testing.T) {
	tk := newTestTask(t)

	require.NoError(t, tk.Transition(Started, "admitted"))
	require.NoError(t, tk.Transition(Running, "first output observed"))
	require.NoError(t, tk.Transition(Completed, "exit 0"))

	assert.Equal(t, Completed, tk.State())
	assert.Len(t, tk.History, 3)
	assert.False(t, tk.StartedAt.IsZero())
	assert.False(t, tk.EndedAt.IsZero())

	err := tk.Transition(Running, "illegal: already terminal")
	assert.Error(t, err)
	assert.Equal(t, Completed, tk.State(), "terminal state must not mutate on rejected transition")
}

func TestTransition_ChildHandleClearedOnTerminal(t *testing.T) {
	tk := newTestTask(t)
	require.NoError(t, tk.Transition(Started, "admitted"))
	tk.SetChildHandle(struct{}{})
	require.NoError(t, tk.Transition(Running, "output"))
	assert.True(t, tk.Snapshot().HasHandle)

	require.NoError(t, tk.Transition(Killed, "grace period exceeded"))
	assert.False(t, tk.Snapshot().HasHandle)
}

func TestRingBuffers_AreIndependentPerTask(t *testing.T) {
	tk := newTestTask(t)
	tk.AppendStdout([]byte("hello"))
	tk.AppendStderr([]byte("warn"))

	assert.Equal(t, []byte("hello"), tk.Stdout.Bytes())
	assert.Equal(t, []byte("warn"), tk.Stderr.Bytes())
}

func TestAttemptRetry_ReenqueuesWithinBudgetAndStampsFreshCreatedAt(t *testing.T) {
	tk, err := New("flaky thing", "", Normal, nil, nil, 2, 0, 4096)
	require.NoError(t, err)
	firstCreatedAt := tk.CreatedAt

	require.NoError(t, tk.Transition(Started, "admitted"))
	require.NoError(t, tk.Transition(Running, "output observed"))
	require.NoError(t, tk.Transition(Failed, "non-zero exit"))

	retried := tk.AttemptRetry("non-zero exit")
	assert.True(t, retried)
	assert.Equal(t, Queued, tk.State())
	assert.Equal(t, 1, tk.RetryCount)
	assert.True(t, tk.CreatedAt.After(firstCreatedAt) || tk.CreatedAt.Equal(firstCreatedAt))
	assert.True(t, tk.EndedAt.IsZero())
	assert.Nil(t, tk.ExitCode)
}

func TestAttemptRetry_StopsAtRetryLimit(t *testing.T) {
	tk, err := New("flaky thing", "", Normal, nil, nil, 1, 0, 4096)
	require.NoError(t, err)

	require.NoError(t, tk.Transition(Started, "admitted"))
	require.NoError(t, tk.Transition(Running, "output observed"))
	require.NoError(t, tk.Transition(Failed, "non-zero exit"))
	require.True(t, tk.AttemptRetry("attempt 1"))

	require.NoError(t, tk.Transition(Started, "admitted again"))
	require.NoError(t, tk.Transition(Running, "output observed"))
	require.NoError(t, tk.Transition(Failed, "non-zero exit again"))

	assert.False(t, tk.AttemptRetry("attempt 2"), "retry_count has reached retry_limit")
	assert.Equal(t, Failed, tk.State())
}

func TestAttemptRetry_NoOpOnNonTerminalOrExhaustedBudget(t *testing.T) {
	tk := newTestTask(t) // retry_limit 0
	require.NoError(t, tk.Transition(Started, "admitted"))
	assert.False(t, tk.AttemptRetry("not terminal yet"))

	require.NoError(t, tk.Transition(Running, "output"))
	require.NoError(t, tk.Transition(Completed, "exit 0"))
	assert.False(t, tk.AttemptRetry("not a failure"))
}
