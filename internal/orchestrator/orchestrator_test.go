package orchestrator

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

func newTestOrchestrator(t *testing.T) (*Orchestrator, func()) {
	t.Helper()
	cfg := config.Defaults()
	cfg.AgentMock = true
	cfg.MaxConcurrency = 2

	ctx, cancel := context.WithCancel(context.Background())
	o := New(ctx, cfg, arbor.NewLogger())
	return o, func() { o.Stop(); cancel() }
}

func TestDelegateCodingTask_RunsToCompletionInMockMode(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	tk, err := o.DelegateCodingTask(DelegateParams{Description: "do the thing"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := o.MonitorTaskProgress(tk.ID)
		return err == nil && snap.State == task.Completed
	}, 3*time.Second, 10*time.Millisecond)

	results, err := o.GetTaskResults(tk.ID)
	require.NoError(t, err)
	assert.Contains(t, results.Stdout, "task complete")
}

func TestDelegateCodingTask_RejectsEmptyDescription(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	_, err := o.DelegateCodingTask(DelegateParams{Description: ""})
	assert.Error(t, err)
}

func TestCancelTask_QueuedTaskTerminatesImmediately(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	// Saturate the scheduler's two worker slots with mock tasks first (each
	// runs for about 300ms), so the next one stays QUEUED long enough to
	// cancel before admission.
	for i := 0; i < 2; i++ {
		_, err := o.DelegateCodingTask(DelegateParams{Description: "filler", Tags: []string{"mock:slow"}})
		require.NoError(t, err)
	}
	blocked, err := o.DelegateCodingTask(DelegateParams{Description: "should stay queued"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := o.MonitorTaskProgress(blocked.ID)
		return err == nil && snap.State == task.Queued
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.CancelTask(blocked.ID))
	snap, err := o.MonitorTaskProgress(blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Terminated, snap.State)
}

func TestListActiveTasks_ExcludesTerminalTasks(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	tk, err := o.DelegateCodingTask(DelegateParams{Description: "do the thing"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := o.MonitorTaskProgress(tk.ID)
		return err == nil && snap.State == task.Completed
	}, 3*time.Second, 10*time.Millisecond)

	for _, snap := range o.ListActiveTasks(ListActiveTasksParams{}) {
		assert.NotEqual(t, tk.ID, snap.ID, "completed task must not appear in active list")
	}
}

func TestListActiveTasks_OrdersByPriorityDescThenCreatedAtAsc(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	// Fill both worker slots with slow filler tasks first so the priority
	// probes below stay QUEUED long enough to observe their order.
	for i := 0; i < 2; i++ {
		_, err := o.DelegateCodingTask(DelegateParams{Description: "filler", Tags: []string{"mock:slow"}})
		require.NoError(t, err)
	}

	low, err := o.DelegateCodingTask(DelegateParams{Description: "low priority", Priority: "LOW"})
	require.NoError(t, err)
	critical, err := o.DelegateCodingTask(DelegateParams{Description: "critical priority", Priority: "CRITICAL"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := o.MonitorTaskProgress(low.ID)
		return err == nil && snap.State == task.Queued
	}, time.Second, 5*time.Millisecond)

	snaps := o.ListActiveTasks(ListActiveTasksParams{States: []string{"QUEUED"}})
	var order []string
	for _, s := range snaps {
		if s.ID == low.ID || s.ID == critical.ID {
			order = append(order, s.ID)
		}
	}
	require.Equal(t, []string{critical.ID, low.ID}, order, "CRITICAL must sort before LOW regardless of submission order")
}

func TestListActiveTasks_FiltersByTag(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		_, err := o.DelegateCodingTask(DelegateParams{Description: "filler", Tags: []string{"mock:slow"}})
		require.NoError(t, err)
	}
	tagged, err := o.DelegateCodingTask(DelegateParams{Description: "tagged", Tags: []string{"needs-review"}})
	require.NoError(t, err)
	_, err = o.DelegateCodingTask(DelegateParams{Description: "untagged"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := o.MonitorTaskProgress(tagged.ID)
		return err == nil && snap.State == task.Queued
	}, time.Second, 5*time.Millisecond)

	snaps := o.ListActiveTasks(ListActiveTasksParams{Tags: []string{"needs-review"}})
	require.Len(t, snaps, 1)
	assert.Equal(t, tagged.ID, snaps[0].ID)
}

func TestCheckAgentAvailability_TrueInMockMode(t *testing.T) {
	o, cleanup := newTestOrchestrator(t)
	defer cleanup()

	available, _ := o.CheckAgentAvailability()
	assert.True(t, available)
}
