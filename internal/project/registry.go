package project

import (
	"path/filepath"
	"sync"

	"github.com/ternarybob/taskgate/internal/taskerr"
)

// Registry is the concurrent, in-memory Project store, keyed by canonical
// (absolute, cleaned) path. Grounded on the teacher's
// internal/project/registry.go for its RWMutex-guarded map shape, but
// deliberately drops that file's Load()/Save() JSON persistence: spec.md
// treats all state as in-memory and lost at exit, with no exception for
// projects.
type Registry struct {
	mu         sync.RWMutex
	byPath     map[string]*Project
	activePath string
}

func NewRegistry() *Registry {
	return &Registry{byPath: make(map[string]*Project)}
}

// Put inserts or atomically replaces the record for p.Path.
func (r *Registry) Put(p *Project) {
	canon := canonicalize(p.Path)
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Path = canon
	r.byPath[canon] = p
}

// Get retrieves the record for path, if analyzed.
func (r *Registry) Get(path string) (*Project, error) {
	canon := canonicalize(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPath[canon]
	if !ok {
		return nil, taskerr.New(taskerr.NotFound, "project %q has not been analyzed", path)
	}
	return p, nil
}

// SetActive marks path as the active project; path must already be
// registered.
func (r *Registry) SetActive(path string) error {
	canon := canonicalize(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPath[canon]; !ok {
		return taskerr.New(taskerr.PreconditionFailed, "cannot activate unanalyzed project %q", path)
	}
	r.activePath = canon
	return nil
}

// Active returns the active project, if any has been set.
func (r *Registry) Active() (*Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activePath == "" {
		return nil, false
	}
	p, ok := r.byPath[r.activePath]
	return p, ok
}

// List returns all registered projects.
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Project, 0, len(r.byPath))
	for _, p := range r.byPath {
		out = append(out, p)
	}
	return out
}

func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
