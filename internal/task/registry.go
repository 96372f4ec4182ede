package task

import (
	"sort"
	"sync"

	"github.com/ternarybob/taskgate/internal/taskerr"
)

// Registry is the concurrent, in-memory Task store. Mirrors the shape of
// the teacher's skill Registry (pkg/agent/registry.go): a map plus an
// order slice, generalized here to a history cap with terminal-task
// eviction instead of unbounded growth, since tasks (unlike skills) are
// created continuously over a long-running process's lifetime.
type Registry struct {
	mu           sync.RWMutex
	tasks        map[string]*Task
	order        []string // insertion order, oldest first
	historyLimit int
}

// NewRegistry creates a registry capped at historyLimit terminal+non-terminal
// entries; historyLimit <= 0 means unbounded.
func NewRegistry(historyLimit int) *Registry {
	return &Registry{
		tasks:        make(map[string]*Task),
		historyLimit: historyLimit,
	}
}

// Create validates dependency existence (spec's submission-time invariant:
// "dependency ids must reference tasks that exist at submission time") and
// adds t to the registry.
func (r *Registry) Create(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range t.Dependencies {
		if _, ok := r.tasks[dep]; !ok {
			return taskerr.New(taskerr.PreconditionFailed, "dependency %q does not exist", dep)
		}
	}

	r.evictIfNeeded()

	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	return nil
}

// evictIfNeeded drops the oldest terminal task once at capacity. Caller
// must hold the write lock.
func (r *Registry) evictIfNeeded() {
	if r.historyLimit <= 0 || len(r.tasks) < r.historyLimit {
		return
	}
	for i, id := range r.order {
		if tk, ok := r.tasks[id]; ok && tk.State().IsTerminal() {
			delete(r.tasks, id)
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
	// No terminal task to evict; allow transient overshoot rather than
	// reject a QUEUED task the Scheduler hasn't had a chance to admit yet.
}

// Get retrieves a task by id.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, taskerr.New(taskerr.NotFound, "task %q not found", id)
	}
	return t, nil
}

// List returns all tasks matching an optional state filter (nil = all),
// ordered by insertion (creation) order.
func (r *Registry) List(filter func(*Task) bool) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		if filter == nil || filter(t) {
			out = append(out, t)
		}
	}
	return out
}

// Eligible returns QUEUED tasks whose dependencies have all COMPLETED,
// ordered by the Scheduler's admission rule: priority descending, then
// created_at ascending, then id ascending as a final tiebreak. Tasks whose
// dependency set contains any non-COMPLETED terminal task are instead
// failed in place (dependency failure propagation) and excluded from the
// result.
func (r *Registry) Eligible() []*Task {
	r.mu.RLock()
	snapshot := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.tasks[id])
	}
	r.mu.RUnlock()

	byID := make(map[string]*Task, len(snapshot))
	for _, t := range snapshot {
		byID[t.ID] = t
	}

	var eligible []*Task
	for _, t := range snapshot {
		if t.State() != Queued {
			continue
		}

		ready := true
		failedDep := ""
		for _, depID := range t.Dependencies {
			dep, ok := byID[depID]
			if !ok {
				continue // existence already enforced at Create time
			}
			ds := dep.State()
			if ds == Completed {
				continue
			}
			if ds.IsTerminal() {
				failedDep = depID
				break
			}
			ready = false
		}

		if failedDep != "" {
			_ = t.Transition(Failed, "dependency failed: "+failedDep)
			continue
		}
		if ready {
			eligible = append(eligible, t)
		}
	}

	SortByAdmissionOrder(eligible)

	return eligible
}

// SortByAdmissionOrder sorts tasks in place by the same rule the Scheduler
// uses to admit them: priority descending, then created_at ascending, then
// id ascending as a final tiebreak.
func SortByAdmissionOrder(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Count returns the total number of tracked tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
