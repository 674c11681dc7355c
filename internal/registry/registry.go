// Package registry holds the single agent registry shared by the
// coordination engine and the delivery gateway. The engine consumes the
// capability view (capabilities, load, availability); the gateway consumes
// the target view (transport target descriptors).
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrAtCapacity   = errors.New("agent at capacity")
)

// DefaultMaxCapacity is used when an agent registers without declaring one.
const DefaultMaxCapacity = 5

// Agent is the registered identity of a logical worker.
type Agent struct {
	ID              string    `json:"id"`
	Capabilities    []string  `json:"capabilities,omitempty"`
	Specializations []string  `json:"specializations,omitempty"`
	Available       bool      `json:"available"`
	CurrentLoad     int       `json:"current_load"`
	MaxCapacity     int       `json:"max_capacity"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// Target describes where and how to deliver to an agent. Kind selects the
// transport ("log", "websocket"); Endpoint and Channel are interpreted by
// that transport.
type Target struct {
	AgentID  string `json:"agent_id"`
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// Registry is a concurrency-safe agent directory.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*Agent
	targets map[string]Target
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		agents:  make(map[string]*Agent),
		targets: make(map[string]Target),
	}
}

// Register upserts an agent. Re-registering resets availability to true and
// current load to zero; capabilities and specializations are replaced.
func (r *Registry) Register(id string, capabilities, specializations []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxCap := DefaultMaxCapacity
	if existing, ok := r.agents[id]; ok && existing.MaxCapacity > 0 {
		maxCap = existing.MaxCapacity
	}
	r.agents[id] = &Agent{
		ID:              id,
		Capabilities:    append([]string(nil), capabilities...),
		Specializations: append([]string(nil), specializations...),
		Available:       true,
		CurrentLoad:     0,
		MaxCapacity:     maxCap,
		RegisteredAt:    time.Now().UTC(),
	}
}

// SetMaxCapacity overrides an agent's capacity ceiling.
func (r *Registry) SetMaxCapacity(id string, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q: %w", id, ErrUnknownAgent)
	}
	a.MaxCapacity = max
	return nil
}

// Lookup returns a copy of an agent record.
func (r *Registry) Lookup(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return Agent{}, fmt.Errorf("agent %q: %w", id, ErrUnknownAgent)
	}
	return cloneAgent(a), nil
}

// List returns all registered agents sorted by id.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Available returns available agents with spare capacity that hold every
// required capability. With no requirements it returns all available
// agents under capacity.
func (r *Registry) Available(required ...string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Agent{}
	for _, a := range r.agents {
		if !a.Available || a.CurrentLoad >= a.MaxCapacity {
			continue
		}
		if !hasAll(a.Capabilities, required) {
			continue
		}
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddLoad increments an agent's load by one. Fails with ErrAtCapacity when
// the agent is already at its ceiling, keeping load <= max capacity as an
// invariant.
func (r *Registry) AddLoad(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q: %w", id, ErrUnknownAgent)
	}
	if a.CurrentLoad >= a.MaxCapacity {
		return fmt.Errorf("agent %q at %d/%d: %w", id, a.CurrentLoad, a.MaxCapacity, ErrAtCapacity)
	}
	a.CurrentLoad++
	return nil
}

// ReleaseLoad decrements an agent's load, flooring at zero.
func (r *Registry) ReleaseLoad(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q: %w", id, ErrUnknownAgent)
	}
	if a.CurrentLoad > 0 {
		a.CurrentLoad--
	}
	return nil
}

// SetAvailable flips an agent's availability flag.
func (r *Registry) SetAvailable(id string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q: %w", id, ErrUnknownAgent)
	}
	a.Available = available
	return nil
}

// SetTarget stores the transport target descriptor for an agent. Targets
// may be set for agents that have not registered yet; the delivery side
// resolves targets independently of capability registration.
func (r *Registry) SetTarget(target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target.AgentID] = target
}

// TargetFor returns the transport target for an agent.
func (r *Registry) TargetFor(id string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[id]
	if !ok {
		return Target{}, fmt.Errorf("target for agent %q: %w", id, ErrUnknownAgent)
	}
	return t, nil
}

func hasAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneAgent(a *Agent) Agent {
	cp := *a
	if a.Capabilities != nil {
		cp.Capabilities = append([]string(nil), a.Capabilities...)
	}
	if a.Specializations != nil {
		cp.Specializations = append([]string(nil), a.Specializations...)
	}
	return cp
}
