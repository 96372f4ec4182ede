package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/taskgate/internal/project"
	"github.com/ternarybob/taskgate/internal/task"
)

func TestSnapshot_CountsTasksByStateAndReportsActiveProject(t *testing.T) {
	tasks := task.NewRegistry(0)
	projects := project.NewRegistry()

	queued, err := task.New("a", "", task.Normal, nil, nil, 0, 0, 4096)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(queued))

	running, err := task.New("b", "", task.Normal, nil, nil, 0, 0, 4096)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(running))
	require.NoError(t, running.Transition(task.Started, "admitted"))
	require.NoError(t, running.Transition(task.Running, "output observed"))

	projects.Put(&project.Project{Path: "/repo/a", Kind: project.KindGo})
	require.NoError(t, projects.SetActive("/repo/a"))

	reporter := New(tasks, projects, func() (int, int) { return 1, 4 })
	snap := reporter.Snapshot()

	assert.Equal(t, 1, snap.TasksByState[task.Queued])
	assert.Equal(t, 1, snap.TasksByState[task.Running])
	assert.Equal(t, 1, snap.ProjectCount)
	assert.Contains(t, snap.ActiveProject, "repo")
	assert.Equal(t, 1, snap.SchedulerRunning)
	assert.Equal(t, 4, snap.SchedulerCapacity)
	assert.Equal(t, 0.25, snap.Saturation)
}

func TestSnapshot_ZeroCapacityNeverDividesByZero(t *testing.T) {
	reporter := New(task.NewRegistry(0), project.NewRegistry(), func() (int, int) { return 0, 0 })
	assert.NotPanics(t, func() {
		snap := reporter.Snapshot()
		assert.Equal(t, float64(0), snap.Saturation)
	})
}
