package work

import (
	"context"
	"sync"

	"github.com/aristath/requestmirror/internal/queue"
)

// Handler executes one task. Returned errors are classified with domain.KindOf.
type Handler func(ctx context.Context, task queue.Task) error

// Registry maps task kinds to their handlers.
type Registry struct {
	handlers map[queue.TaskKind]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[queue.TaskKind]Handler)}
}

// Register sets the handler of a kind, replacing any previous one.
func (r *Registry) Register(kind queue.TaskKind, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Get returns the handler of a kind, or nil.
func (r *Registry) Get(kind queue.TaskKind) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[kind]
}
