// Package adapter defines the per-agent capture interface and the
// registry that composes one concrete implementation per
// session.AgentID. Grounded on the teacher's per-agent
// internal/parser/Parse<Agent>Session functions, which this package
// wraps behind a single closed interface so the rest of the pipeline
// (cmd/braindump, internal/watch) never branches on agent identity.
package adapter

import (
	"context"
	"fmt"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// Adapter captures in-progress sessions from one coding agent's
// on-disk storage.
type Adapter interface {
	ID() session.AgentID
	Detect() bool
	ListSessions(ctx context.Context, projectPath string) ([]session.SessionInfo, error)
	Capture(ctx context.Context, sessionID string) (*session.Captured, error)
	CaptureLatest(ctx context.Context, projectPath string) (*session.Captured, error)
}

// Registry maps an AgentID to its live Adapter instance.
type Registry struct {
	adapters map[session.AgentID]Adapter
	order    []session.AgentID
}

// NewRegistry builds a registry from an explicit set of adapters,
// preserving the order they were given for ListSessions fan-out.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[session.AgentID]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, exists := r.adapters[a.ID()]; exists {
			continue
		}
		r.adapters[a.ID()] = a
		r.order = append(r.order, a.ID())
	}
	return r
}

// Get returns the adapter for id, or an error if none is registered.
func (r *Registry) Get(id session.AgentID) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", braindumperr.ErrUnknownAgent, id)
	}
	return a, nil
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Detected returns the subset of registered adapters whose Detect
// reports that the agent's storage is present on this machine.
func (r *Registry) Detected() []Adapter {
	var out []Adapter
	for _, a := range r.All() {
		if a.Detect() {
			out = append(out, a)
		}
	}
	return out
}
