package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/taskgate/internal/task"
)

// runMock drives a task through a deterministic synthetic transcript
// without spawning any child process - used when AGENT_MOCK is truthy, or
// a task is tagged "mock:fail" for deterministic failure-path testing
// (spec.md §8 scenario 4). No real filesystem or process interaction
// occurs; this exists purely to make the Scheduler/Supervisor pipeline
// testable in CI without a real coding-agent binary installed.
//
// It still registers a handle and honors cancellation, since a mock-mode
// task is otherwise indistinguishable from a real one to a caller: it
// reaches RUNNING, can be cancelled mid-flight (spec.md §8 scenario 5),
// and Cancel's soft-then-hard protocol must be able to reach it the same
// way it reaches a real child process.
func (s *Supervisor) runMock(ctx context.Context, t *task.Task) {
	mockCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		stop:        make(chan struct{}),
		cancel:      cancel,
		done:        make(chan struct{}),
		gracePeriod: time.Duration(s.cfg.GracePeriodMS) * time.Millisecond,
	}
	t.SetChildHandle(h)
	s.registerHandle(t.ID, h)
	defer func() {
		close(h.done)
		s.unregisterHandle(t.ID)
		cancel()
	}()

	shouldFail := false
	for _, tag := range t.Tags {
		if tag == "mock:fail" {
			shouldFail = true
		}
	}

	t.AppendStdout([]byte(fmt.Sprintf("[mock] starting task %s\n", t.ID)))

	select {
	case <-time.After(150 * time.Millisecond):
	case <-h.stop:
		_ = t.Transition(task.Terminated, "cancelled before mock completion")
		return
	case <-mockCtx.Done():
		_ = t.Transition(task.Terminated, "cancelled before mock completion")
		return
	}

	_ = t.Transition(task.Running, "mock execution in progress")
	t.AppendStdout([]byte("[mock] working...\n"))

	select {
	case <-time.After(150 * time.Millisecond):
	case <-h.stop:
		_ = t.Transition(task.Terminated, "cancelled during mock execution")
		return
	case <-mockCtx.Done():
		_ = t.Transition(task.Killed, "force-cancelled during mock execution")
		return
	}

	if shouldFail {
		t.AppendStderr([]byte("[mock] simulated failure\n"))
		t.SetExit(1)
		t.SetError("mock:fail tag requested simulated failure")
		_ = t.Transition(task.Failed, "mock:fail tag")
		t.AttemptRetry("mock:fail tag")
		return
	}

	t.AppendStdout([]byte("[mock] task complete\n"))
	t.SetExit(0)
	_ = t.Transition(task.Completed, "mock execution finished")
}

// isMockTagged reports whether t carries any tag beginning with "mock:".
func isMockTagged(t *task.Task) bool {
	for _, tag := range t.Tags {
		if strings.HasPrefix(tag, "mock:") {
			return true
		}
	}
	return false
}
