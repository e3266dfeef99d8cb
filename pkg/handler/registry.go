package handler

import (
	"fmt"
	"sync"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// Registry maps node kinds to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.NodeKind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.NodeKind]Handler)}
}

// Register registers a handler for a node kind, replacing any existing one.
func (r *Registry) Register(kind models.NodeKind, h Handler) error {
	if kind == "" {
		return fmt.Errorf("node kind cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
	return nil
}

// Get retrieves the handler for a node kind.
func (r *Registry) Get(kind models.NodeKind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrHandlerNotFound, kind)
	}
	return h, nil
}

// Has reports whether a handler is registered for the kind.
func (r *Registry) Has(kind models.NodeKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}

// Kinds returns all registered node kinds.
func (r *Registry) Kinds() []models.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.NodeKind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}
