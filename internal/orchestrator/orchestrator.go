// Package orchestrator wires the Project Registry, Task Registry,
// Scheduler, Supervisor, and Status Reporter together behind the nine
// operations spec.md §6 names, independent of the MCP transport layer so
// internal/mcpserver's handlers stay thin argument-marshaling shims.
package orchestrator

import (
	"context"
	"os/exec"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/taskgate/internal/config"
	"github.com/ternarybob/taskgate/internal/project"
	"github.com/ternarybob/taskgate/internal/scheduler"
	"github.com/ternarybob/taskgate/internal/status"
	"github.com/ternarybob/taskgate/internal/supervisor"
	"github.com/ternarybob/taskgate/internal/task"
	"github.com/ternarybob/taskgate/internal/taskerr"
)

// Orchestrator is the single point of entry tool handlers call into.
type Orchestrator struct {
	cfg *config.Config
	log arbor.ILogger

	Projects *project.Registry
	Tasks    *task.Registry

	sched *scheduler.Scheduler
	sup   *supervisor.Supervisor
	rep   *status.Reporter
}

// New constructs an Orchestrator and starts its Scheduler against ctx;
// call Stop to shut down cleanly.
func New(ctx context.Context, cfg *config.Config, log arbor.ILogger) *Orchestrator {
	projects := project.NewRegistry()
	tasks := task.NewRegistry(cfg.TaskHistoryLimit)

	o := &Orchestrator{cfg: cfg, log: log, Projects: projects, Tasks: tasks}

	o.sup = supervisor.New(cfg, log, func() (string, bool) {
		active, ok := projects.Active()
		if !ok {
			return "", false
		}
		return active.Path, true
	})

	o.sched = scheduler.New(tasks, o.sup, cfg.MaxConcurrency, log)
	o.rep = status.New(tasks, projects, o.sched.Capacity)
	o.sched.Start(ctx)

	return o
}

// Stop shuts the Scheduler (and all in-flight Supervisor runs) down.
func (o *Orchestrator) Stop() {
	o.sched.Stop()
}

// CheckAgentAvailability reports whether the configured coding-agent CLI
// can be resolved, or whether mock mode makes the question moot.
func (o *Orchestrator) CheckAgentAvailability() (available bool, detail string) {
	if o.cfg.AgentMock {
		return true, "mock mode enabled; no external agent required"
	}
	if o.cfg.AgentCLIPath == "" {
		return false, "AGENT_CLI_PATH is not configured"
	}
	if _, err := exec.LookPath(o.cfg.AgentCLIPath); err != nil {
		return false, "agent CLI not resolvable: " + err.Error()
	}
	return true, o.cfg.AgentCLIPath
}

// AnalyzeProject analyzes dir and records the result in the Project
// Registry, replacing any prior record for the same canonical path.
func (o *Orchestrator) AnalyzeProject(dir string) (*project.Project, error) {
	p, err := project.Analyze(dir)
	if err != nil {
		return nil, err
	}
	o.Projects.Put(p)
	return p, nil
}

// SetActiveProject marks path as active; it must already be analyzed.
func (o *Orchestrator) SetActiveProject(path string) error {
	return o.Projects.SetActive(path)
}

// GetSystemStatus returns a point-in-time aggregate snapshot.
func (o *Orchestrator) GetSystemStatus() status.Snapshot {
	return o.rep.Snapshot()
}

// DelegateParams is delegate_coding_task's argument set.
type DelegateParams struct {
	Description  string
	ProjectPath  string
	Priority     string
	Tags         []string
	Dependencies []string
	RetryLimit   int
	TimeoutSecs  int
}

// DelegateCodingTask validates and submits a new task, then wakes the
// Scheduler so admission happens promptly rather than waiting for the
// periodic safety-net tick.
func (o *Orchestrator) DelegateCodingTask(p DelegateParams) (*task.Task, error) {
	priority, err := task.ParsePriority(p.Priority)
	if err != nil {
		return nil, err
	}

	t, err := task.New(p.Description, p.ProjectPath, priority, p.Tags, p.Dependencies, p.RetryLimit, p.TimeoutSecs, o.cfg.BufferBytes)
	if err != nil {
		return nil, err
	}

	if err := o.Tasks.Create(t); err != nil {
		return nil, err
	}

	o.sched.Notify()
	return t, nil
}

// MonitorTaskProgress returns a snapshot of the named task.
func (o *Orchestrator) MonitorTaskProgress(id string) (task.Snapshot, error) {
	t, err := o.Tasks.Get(id)
	if err != nil {
		return task.Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// TaskResults is get_task_results' return payload.
type TaskResults struct {
	Snapshot task.Snapshot
	Stdout   string
	Stderr   string
}

// GetTaskResults returns the full captured output and final snapshot for a
// task. Callable at any point in the task's life; stdout/stderr reflect
// whatever has been captured so far for a still-running task.
func (o *Orchestrator) GetTaskResults(id string) (TaskResults, error) {
	t, err := o.Tasks.Get(id)
	if err != nil {
		return TaskResults{}, err
	}
	return TaskResults{
		Snapshot: t.Snapshot(),
		Stdout:   string(t.Stdout.Bytes()),
		Stderr:   string(t.Stderr.Bytes()),
	}, nil
}

// ListActiveTasksParams is list_active_tasks' argument set; both fields are
// optional filters per spec.md §6's `{states?, tags?}`.
type ListActiveTasksParams struct {
	// States restricts the result to these states. Empty means the
	// "active" default: QUEUED, STARTED, RUNNING (any non-terminal state).
	// A caller may name terminal states explicitly (e.g. ["FAILED"]) to
	// look past the default.
	States []string
	// Tags restricts the result to tasks carrying at least one of these
	// tags. Empty means no tag filtering.
	Tags []string
}

// ListActiveTasks returns snapshots of the tasks matching p, ordered by the
// Scheduler's own admission rule: priority descending, then created_at
// ascending. With no filters this is every non-terminal task; a terminal
// task reached since the last call is still visible via get_task_results
// even once it drops out of this default view.
func (o *Orchestrator) ListActiveTasks(p ListActiveTasksParams) []task.Snapshot {
	states := make(map[task.State]bool, len(p.States))
	for _, s := range p.States {
		states[task.State(strings.ToUpper(s))] = true
	}
	tags := make(map[string]bool, len(p.Tags))
	for _, tg := range p.Tags {
		tags[tg] = true
	}

	matched := o.Tasks.List(func(t *task.Task) bool {
		if len(states) > 0 {
			if !states[t.State()] {
				return false
			}
		} else if t.State().IsTerminal() {
			return false
		}

		if len(tags) == 0 {
			return true
		}
		for _, tg := range t.Tags {
			if tags[tg] {
				return true
			}
		}
		return false
	})

	task.SortByAdmissionOrder(matched)

	out := make([]task.Snapshot, 0, len(matched))
	for _, t := range matched {
		out = append(out, t.Snapshot())
	}
	return out
}

// CancelTask cancels a task regardless of its current phase: a QUEUED task
// is transitioned straight to TERMINATED; a STARTED/RUNNING task goes
// through the Supervisor's soft-then-hard cancellation protocol.
func (o *Orchestrator) CancelTask(id string) error {
	t, err := o.Tasks.Get(id)
	if err != nil {
		return err
	}

	switch t.State() {
	case task.Queued:
		return t.Transition(task.Terminated, "cancelled before admission")
	case task.Started, task.Running:
		return o.sup.Cancel(t)
	default:
		return taskerr.New(taskerr.PreconditionFailed, "task %q is already in terminal state %s", id, t.State())
	}
}
