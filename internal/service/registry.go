package service

import (
	"sort"
	"sync"

	"github.com/glintapp/glint-core/internal/domain/generation"
)

// Registry is the process-wide table of active and recently-completed
// generation tasks, keyed by task id. It is the single source of truth for
// what the client is currently showing.
//
// Every mutation is a targeted upsert of one row; there are no bulk rewrites,
// so concurrent updates to different tasks never contend beyond the map lock.
// Tasks are stored by value: a reader always observes a complete task, never
// a half-updated one.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]generation.Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]generation.Task)}
}

// Insert adds a freshly launched task.
func (r *Registry) Insert(t generation.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
}

// Get returns a copy of the task with the given id.
func (r *Registry) Get(id string) (generation.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Apply upserts a task, enforcing the lifecycle invariants:
//
//   - a terminal task never transitions back to pending; the only permitted
//     rewrite of a terminal row is a refresh carrying the same status
//   - when both the current and incoming rows carry a persisted snapshot,
//     the one with the newer persisted UpdatedAt wins
//
// It reports whether the row was written.
func (r *Registry) Apply(t generation.Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tasks[t.ID]
	if !ok {
		// Row was removed by the user; do not resurrect it.
		return false
	}
	if cur.Status.Terminal() && t.Status != cur.Status {
		return false
	}
	if cur.Work != nil && t.Work != nil && t.Work.UpdatedAt.Before(cur.Work.UpdatedAt) {
		return false
	}

	r.tasks[t.ID] = t
	return true
}

// Remove deletes a task row. It reports whether the row existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// Snapshot returns copies of all tasks, newest first.
func (r *Registry) Snapshot() []generation.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]generation.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Len returns the number of tasks in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
