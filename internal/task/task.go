// Package task implements the Task data model, its state machine, and a
// concurrent, in-memory Task Registry. Nothing here is persisted; per
// spec.md's non-goals, all task state is lost at process exit.
package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/taskgate/internal/taskerr"
)

// Priority totally orders admission preference; Critical is highest.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// ParsePriority maps an external string onto a Priority, defaulting to
// Normal for an empty string and erroring on anything unrecognized.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "NORMAL":
		return Normal, nil
	case "LOW":
		return Low, nil
	case "HIGH":
		return High, nil
	case "CRITICAL":
		return Critical, nil
	default:
		return 0, taskerr.New(taskerr.BadRequest, "unknown priority %q", s)
	}
}

func (p Priority) String() string {
	switch p {
	case Critical:
		return "CRITICAL"
	case High:
		return "HIGH"
	case Low:
		return "LOW"
	default:
		return "NORMAL"
	}
}

// ActiveProjectSentinel is the project_path value meaning "use whichever
// project is currently active in the Project Registry".
const ActiveProjectSentinel = "active"

// Task is one unit of coding work delegated to the supervised agent CLI.
type Task struct {
	mu sync.Mutex

	ID           string
	Description  string
	ProjectPath  string
	Priority     Priority
	Tags         []string
	Dependencies []string

	state State

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	ExitCode    *int
	RetryCount  int
	RetryLimit  int
	TimeoutSecs int

	Stdout *RingBuffer
	Stderr *RingBuffer

	// ChildHandle is non-nil iff state is STARTED or RUNNING. It is owned
	// by internal/supervisor; this package only tracks its presence.
	ChildHandle any

	LastError string
	History   []Transition

	// sampled resource usage, best-effort (internal/supervisor writes these)
	LastCPUPercent float64
	LastMemRSSMB   float64
	LastSampledAt  time.Time
}

// New constructs a QUEUED task with a fresh id and timestamp, performing
// the submission-time validation spec.md requires (non-empty description,
// no self-referential dependency).
func New(description, projectPath string, priority Priority, tags, dependencies []string, retryLimit, timeoutSecs, bufferBytes int) (*Task, error) {
	if description == "" {
		return nil, taskerr.New(taskerr.BadRequest, "description must not be empty")
	}
	if projectPath == "" {
		projectPath = ActiveProjectSentinel
	}

	id := uuid.NewString()
	for _, dep := range dependencies {
		if dep == id {
			return nil, taskerr.New(taskerr.PreconditionFailed, "task cannot depend on itself")
		}
	}

	return &Task{
		ID:           id,
		Description:  description,
		ProjectPath:  projectPath,
		Priority:     priority,
		Tags:         append([]string(nil), tags...),
		Dependencies: append([]string(nil), dependencies...),
		state:        Queued,
		CreatedAt:    time.Now(),
		RetryLimit:   retryLimit,
		TimeoutSecs:  timeoutSecs,
		Stdout:       NewRingBuffer(bufferBytes),
		Stderr:       NewRingBuffer(bufferBytes),
	}, nil
}

// State returns the task's current state under its own lock.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transition moves the task to `to`, recording history, only if the
// transition is legal from the current state. Returns a PreconditionFailed
// taskerr.Error otherwise, never mutating the task.
func (t *Task) Transition(to State, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !CanTransition(t.state, to) {
		return taskerr.New(taskerr.PreconditionFailed, "illegal transition %s -> %s for task %s", t.state, to, t.ID)
	}

	now := time.Now()
	t.History = append(t.History, Transition{From: t.state, To: to, Reason: reason, At: now})

	switch to {
	case Started:
		t.StartedAt = now
	case Running:
		// no timestamp field of its own; StartedAt already stamped
	default:
		if to.IsTerminal() {
			t.EndedAt = now
			if to != Started && to != Running {
				t.ChildHandle = nil
			}
		}
	}
	t.state = to
	return nil
}

// AttemptRetry re-enqueues a FAILED/ERROR task if retry_count < retry_limit,
// per spec.md's retry rule. It is the one deliberate exception to terminal-
// state immutability: rather than model retry as a legal state-machine
// transition, the task is reset to a fresh QUEUED attempt with retry_count
// incremented and created_at stamped to now, so it sorts to the tail of
// FIFO admission order rather than preserving its original position.
// Captured output is preserved across attempts with an appended section
// marker. Returns whether a retry was scheduled.
func (t *Task) AttemptRetry(reason string) bool {
	t.mu.Lock()
	if (t.state != Failed && t.state != Error) || t.RetryCount >= t.RetryLimit {
		t.mu.Unlock()
		return false
	}

	t.RetryCount++
	attempt := t.RetryCount
	now := time.Now()
	t.History = append(t.History, Transition{From: t.state, To: Queued, Reason: reason, At: now})
	t.state = Queued
	t.CreatedAt = now
	t.StartedAt = time.Time{}
	t.EndedAt = time.Time{}
	t.ExitCode = nil
	t.mu.Unlock()

	marker := []byte(fmt.Sprintf("--- retry %d ---\n", attempt))
	t.Stdout.Write(marker)
	t.Stderr.Write(marker)
	return true
}

// SetSample records a best-effort resource-usage sample taken by
// internal/supervisor's Sampler.
func (t *Task) SetSample(cpuPercent, memRSSMB float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LastCPUPercent = cpuPercent
	t.LastMemRSSMB = memRSSMB
	t.LastSampledAt = at
}

// SetChildHandle records the supervisor's opaque process handle. Only
// valid while the task is STARTED or RUNNING; enforced by the caller
// (internal/supervisor), which only holds a handle during that window.
func (t *Task) SetChildHandle(h any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ChildHandle = h
}

// SetExit records the child's exit code once it has run to completion.
func (t *Task) SetExit(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := code
	t.ExitCode = &c
}

// SetError records a human-readable failure reason for FAILED/ERROR tasks.
func (t *Task) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LastError = msg
}

// LastSample returns the most recent resource sample, if any.
func (t *Task) LastSample() (cpuPercent, memRSSMB float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.LastCPUPercent, t.LastMemRSSMB, t.LastSampledAt
}

// AppendStdout/AppendStderr feed the bounded ring buffers.
func (t *Task) AppendStdout(p []byte) { t.Stdout.Write(p) }
func (t *Task) AppendStderr(p []byte) { t.Stderr.Write(p) }

// Snapshot is an immutable, lock-free copy of a Task for safe export over
// the RPC boundary (tools/list, tools/call results).
type Snapshot struct {
	ID           string
	Description  string
	ProjectPath  string
	Priority     string
	Tags         []string
	Dependencies []string
	State        State
	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
	ExitCode     *int
	RetryCount   int
	RetryLimit   int
	LastError    string
	StdoutStats  Stats
	StderrStats  Stats
	HasHandle    bool
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:           t.ID,
		Description:  t.Description,
		ProjectPath:  t.ProjectPath,
		Priority:     t.Priority.String(),
		Tags:         append([]string(nil), t.Tags...),
		Dependencies: append([]string(nil), t.Dependencies...),
		State:        t.state,
		CreatedAt:    t.CreatedAt,
		StartedAt:    t.StartedAt,
		EndedAt:      t.EndedAt,
		ExitCode:     t.ExitCode,
		RetryCount:   t.RetryCount,
		RetryLimit:   t.RetryLimit,
		LastError:    t.LastError,
		StdoutStats:  t.Stdout.Stats(),
		StderrStats:  t.Stderr.Stats(),
		HasHandle:    t.ChildHandle != nil,
	}
}
