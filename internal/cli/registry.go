package cli

import (
	"path/filepath"
	"sync"

	"lintdeck/internal/model"
)

// Registry holds one StateMachine per open project, keyed by project root.
type Registry struct {
	opts Options

	mu       sync.Mutex
	machines map[string]*StateMachine
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		machines: make(map[string]*StateMachine),
	}
}

// Open returns the machine for id's project, creating it on first use. An
// existing machine bound to a different identity is rebound.
func (r *Registry) Open(id model.Identity) *StateMachine {
	key := filepath.Clean(id.ProjectRoot)

	r.mu.Lock()
	m, ok := r.machines[key]
	if !ok {
		m = NewStateMachine(id, r.opts)
		r.machines[key] = m
	}
	r.mu.Unlock()

	if ok {
		m.Rebind(id)
	}
	return m
}

// Get returns the machine for a project root, if open.
func (r *Registry) Get(root string) (*StateMachine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[filepath.Clean(root)]
	return m, ok
}

// Close forgets the machine for a project root.
func (r *Registry) Close(root string) {
	r.mu.Lock()
	delete(r.machines, filepath.Clean(root))
	r.mu.Unlock()
}
