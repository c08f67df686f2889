// Package connector hosts the per-vendor connection managers that pull (or
// receive) raw events and feed them into the pipeline.
package connector

import (
	"context"
	"log/slog"
	"sync"
)

// Manager owns the live link for one connector instance. Start must not
// block; long-running reads belong in goroutines the manager owns until Stop.
type Manager interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// Registry holds the running managers so startup and shutdown stay explicit.
type Registry struct {
	mu       sync.Mutex
	managers []Manager
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Add(m Manager) {
	r.mu.Lock()
	r.managers = append(r.managers, m)
	r.mu.Unlock()
}

// StartAll starts every registered manager. A manager that fails to start is
// logged and skipped; one broken connector never blocks the rest.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.Lock()
	managers := append([]Manager(nil), r.managers...)
	r.mu.Unlock()
	for _, m := range managers {
		if err := m.Start(ctx); err != nil {
			slog.Error("connector manager failed to start", "manager", m.Name(), "error", err)
			continue
		}
		slog.Info("connector manager started", "manager", m.Name())
	}
}

func (r *Registry) StopAll() {
	r.mu.Lock()
	managers := append([]Manager(nil), r.managers...)
	r.mu.Unlock()
	for _, m := range managers {
		m.Stop()
	}
}
