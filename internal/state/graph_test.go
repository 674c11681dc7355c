package state

import (
	"strings"
	"testing"
)

func TestValidateDependencies(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(s *Store)
		wantErr     bool
		errContains string
	}{
		{
			name: "valid linear chain",
			setup: func(s *Store) {
				s.Create("A", "a", "x", nil, nil)
				s.Create("B", "b", "x", nil, []string{"A"})
				s.Create("C", "c", "x", nil, []string{"B"})
			},
		},
		{
			name: "valid diamond",
			setup: func(s *Store) {
				s.Create("A", "a", "x", nil, nil)
				s.Create("B", "b", "x", nil, []string{"A"})
				s.Create("C", "c", "x", nil, []string{"A"})
				s.Create("D", "d", "x", nil, []string{"B", "C"})
			},
		},
		{
			name: "unknown dependency",
			setup: func(s *Store) {
				s.Create("A", "a", "x", nil, []string{"ghost"})
			},
			wantErr:     true,
			errContains: "non-existent",
		},
		{
			name: "direct cycle",
			setup: func(s *Store) {
				s.Create("A", "a", "x", nil, []string{"B"})
				s.Create("B", "b", "x", nil, []string{"A"})
			},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name: "self loop",
			setup: func(s *Store) {
				s.Create("A", "a", "x", nil, []string{"A"})
			},
			wantErr:     true,
			errContains: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			tt.setup(s)

			order, err := s.ValidateDependencies()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got order %v", order)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(order) != s.Report().TotalStates {
				t.Errorf("order has %d entries, want %d", len(order), s.Report().TotalStates)
			}
			// Every dependency must come before its dependent.
			pos := make(map[string]int, len(order))
			for i, id := range order {
				pos[id] = i
			}
			for _, ts := range s.AvailableTasks() {
				for _, dep := range ts.Dependencies {
					if pos[dep] > pos[ts.ID] {
						t.Errorf("dependency %s ordered after %s", dep, ts.ID)
					}
				}
			}
		})
	}
}
