package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Factory builds the Updater for one simulation; Create starts it. Each
// call must return an updater with its own store instance, because Stop
// closes the store.
type Factory func(ctx context.Context, simulationID, graphID string) (*Updater, error)

// Registry tracks the live updater of each simulation. Creating an
// updater for a simulation that already has one stops the old one first.
type Registry struct {
	mu       sync.Mutex
	factory  Factory
	updaters map[string]*Updater
	stopped  bool
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:  factory,
		updaters: make(map[string]*Updater),
		logger:   logger,
	}
}

// Create builds and starts an updater for the simulation, replacing and
// stopping any previous one.
func (r *Registry) Create(ctx context.Context, simulationID, graphID string) (*Updater, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, fmt.Errorf("registry is shut down")
	}
	if old, ok := r.updaters[simulationID]; ok {
		r.logger.Info("replacing existing updater", "simulation_id", simulationID)
		old.Stop()
		delete(r.updaters, simulationID)
	}
	u, err := r.factory(ctx, simulationID, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to create updater for %s: %w", simulationID, err)
	}
	if err := u.Start(ctx); err != nil {
		u.Stop()
		return nil, err
	}
	r.updaters[simulationID] = u
	return u, nil
}

// Get returns the simulation's updater, if any.
func (r *Registry) Get(simulationID string) (*Updater, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updaters[simulationID]
	return u, ok
}

// Stop flushes and removes the simulation's updater. It reports whether
// one existed.
func (r *Registry) Stop(simulationID string) bool {
	r.mu.Lock()
	u, ok := r.updaters[simulationID]
	if ok {
		delete(r.updaters, simulationID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	u.Stop()
	return true
}

// StopAll stops every updater once; later calls are no-ops so shutdown
// paths can all invoke it safely.
func (r *Registry) StopAll() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	updaters := make(map[string]*Updater, len(r.updaters))
	for simulationID, u := range r.updaters {
		updaters[simulationID] = u
	}
	r.updaters = make(map[string]*Updater)
	r.mu.Unlock()

	for simulationID, u := range updaters {
		u.Stop()
		r.logger.Info("updater stopped", "simulation_id", simulationID)
	}
	if len(updaters) > 0 {
		r.logger.Info("all updaters stopped", "count", len(updaters))
	}
}

// AllStats snapshots the stats of every live updater keyed by simulation.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.Lock()
	updaters := make(map[string]*Updater, len(r.updaters))
	for simulationID, u := range r.updaters {
		updaters[simulationID] = u
	}
	r.mu.Unlock()

	stats := make(map[string]Stats, len(updaters))
	for simulationID, u := range updaters {
		stats[simulationID] = u.GetStats()
	}
	return stats
}
