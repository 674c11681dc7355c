package state

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// ValidateDependencies checks the declared dependency edges across all
// tracked states: every referenced dependency must exist and the graph must
// be acyclic. Returns a topological ordering of task ids, or an error
// naming the offending edge or cycle.
func (s *Store) ValidateDependencies() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ts := range s.states {
		for _, depID := range ts.Dependencies {
			if _, exists := s.states[depID]; !exists {
				return nil, fmt.Errorf("state %q depends on non-existent state %q", id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for id, ts := range s.states {
		if len(ts.Dependencies) == 0 {
			// Root task with no dependencies; edge from nil keeps it in the sort.
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range ts.Dependencies {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Catches disconnected entries the sort dropped.
	if len(order) != len(s.states) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		missing := []string{}
		for id := range s.states {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d states: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
