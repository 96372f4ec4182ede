// Package scheduler implements taskgate's priority- and dependency-aware
// admission loop: a single long-lived goroutine that feeds a bounded pool
// of Supervisor workers, generalized from the teacher's single-flight
// pkg/orchestra.DefaultOrchestrator.ExecuteWorkflow step loop
// (pkg/orchestra/orchestra.go) into a concurrent admission loop over many
// independent tasks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/taskgate/internal/task"
)

// Runner executes one admitted task to completion. internal/supervisor's
// *Supervisor satisfies this.
type Runner interface {
	Run(ctx context.Context, t *task.Task)
}

// Scheduler owns the admission loop and worker slot pool.
type Scheduler struct {
	registry *task.Registry
	runner   Runner
	log      arbor.ILogger

	capacity int
	sem      chan struct{}
	wake     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler bounded at `capacity` concurrent RUNNING tasks.
func New(registry *task.Registry, runner Runner, capacity int, log arbor.ILogger) *Scheduler {
	return &Scheduler{
		registry: registry,
		runner:   runner,
		log:      log,
		capacity: capacity,
		sem:      make(chan struct{}, capacity),
		wake:     make(chan struct{}, 1),
	}
}

// Start begins the admission loop under a context derived from parent;
// call Stop to shut down cleanly.
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	s.wg.Add(1)
	go s.loop()
}

// Stop signals the admission loop and all in-flight task runs to wind
// down, then waits for them to finish (bounded by the caller's own
// shutdown timeout - Stop itself does not impose one).
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Capacity reports current in-flight task count and total worker slots,
// for internal/status's saturation metric.
func (s *Scheduler) Capacity() (running, capacity int) {
	return len(s.sem), s.capacity
}

// Notify wakes the admission loop immediately - called whenever a task is
// submitted or reaches a terminal state, so admission doesn't wait for the
// periodic safety-net tick.
func (s *Scheduler) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.admit()
		case <-ticker.C:
			s.admit()
		}
	}
}

// admit pulls as many eligible tasks as there are free worker slots,
// in admission order (priority desc, created_at asc, id asc), and
// dispatches each to a goroutine running the Supervisor. Slots are
// released (and the loop re-woken) when a task finishes.
func (s *Scheduler) admit() {
	for {
		eligible := s.registry.Eligible()
		if len(eligible) == 0 {
			return
		}

		select {
		case s.sem <- struct{}{}:
		default:
			return // no free slots; wait for the next wake
		}

		t := eligible[0]
		// Claim the task synchronously, before the next loop iteration
		// recomputes Eligible() - this is what prevents the same QUEUED
		// task from being admitted twice while its worker goroutine is
		// still starting up.
		if err := t.Transition(task.Started, "admitted by scheduler"); err != nil {
			<-s.sem
			continue
		}
		s.dispatch(t)
	}
}

func (s *Scheduler) dispatch(t *task.Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem; s.Notify() }()
		s.runner.Run(s.ctx, t)
	}()
}
