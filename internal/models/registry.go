package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fleet-ai-gateway/internal/metrics"
	"fleet-ai-gateway/internal/utils"
)

type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

type Status struct {
	Capability Capability
	State      State
	Error      string
	LoadedAt   time.Time
}

// Registry tracks the readiness of every collaborator. Collaborators start
// out initializing, become ready or failed after Load, and closed on Shutdown.
type Registry struct {
	mu       sync.RWMutex
	models   map[Capability]Model
	statuses map[Capability]*Status
}

func NewRegistry(collaborators Collaborators) *Registry {
	r := &Registry{
		models:   collaborators.ByCapability(),
		statuses: make(map[Capability]*Status),
	}
	for capability := range r.models {
		r.statuses[capability] = &Status{Capability: capability, State: StateInitializing}
		metrics.ModelReady.WithLabelValues(string(capability)).Set(0)
	}
	return r
}

// LoadAll loads every collaborator in LoadOrder, one at a time. A failing
// collaborator is marked failed and does not stop the remaining loads.
func (r *Registry) LoadAll(ctx context.Context) {
	slog.Info("loading models")
	failed := 0
	for _, capability := range LoadOrder {
		model, ok := r.models[capability]
		if !ok {
			continue
		}

		if err := model.Load(ctx); err != nil {
			slog.Error("error loading model", "capability", capability, "error", err)
			r.setState(capability, StateFailed, err)
			failed++
			continue
		}

		r.setState(capability, StateReady, nil)
		slog.Info("model loaded", "capability", capability)
	}

	if failed == 0 {
		slog.Info("all models loaded successfully")
	} else {
		slog.Warn("some models failed to load", "failed", failed, "total", len(r.models))
	}
}

// Ready returns nil if the collaborator for capability can serve calls.
func (r *Registry) Ready(capability Capability) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.statuses[capability]
	if !ok {
		return &NotReadyError{Capability: capability}
	}
	if status.State != StateReady {
		return &NotReadyError{Capability: capability, State: status.State}
	}
	return nil
}

// Statuses returns a snapshot ordered by LoadOrder.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.statuses))
	for _, capability := range LoadOrder {
		if status, ok := r.statuses[capability]; ok {
			out = append(out, *status)
		}
	}
	return out
}

type ProbeResult struct {
	Capability Capability
	Err        error
}

// Probe pings every ready collaborator concurrently.
func (r *Registry) Probe(ctx context.Context, maxWorkers int) map[Capability]error {
	queue := make(chan Capability, len(r.models))
	for _, status := range r.Statuses() {
		if status.State == StateReady {
			queue <- status.Capability
		}
	}
	close(queue)

	results := make(map[Capability]error)
	if len(queue) == 0 {
		return results
	}

	maxWorkers = max(maxWorkers, 1)
	completed := make(chan utils.CompletedTask[ProbeResult], len(queue))
	utils.RunInPool(func(capability Capability) (ProbeResult, error) {
		return ProbeResult{Capability: capability, Err: r.models[capability].Ping(ctx)}, nil
	}, queue, completed, maxWorkers)

	for task := range completed {
		results[task.Result.Capability] = task.Result.Err
	}
	return results
}

// Shutdown closes every collaborator and marks it closed.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, capability := range LoadOrder {
		model, ok := r.models[capability]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s model: %w", capability, err))
		}
		r.setState(capability, StateClosed, nil)
	}
	return errors.Join(errs...)
}

func (r *Registry) setState(capability Capability, state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[capability]
	if !ok {
		return
	}
	status.State = state
	status.Error = ""
	if err != nil {
		status.Error = err.Error()
	}
	if state == StateReady {
		status.LoadedAt = time.Now()
		metrics.ModelReady.WithLabelValues(string(capability)).Set(1)
	} else {
		metrics.ModelReady.WithLabelValues(string(capability)).Set(0)
	}
}
