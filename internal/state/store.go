// Package state implements the persisted task-lifecycle tracker: a coarse
// lock around all mutations, a declared legal-edge table for transitions,
// dependency-aware availability, and a JSON snapshot written after every
// successful mutation.
package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/agentcoord/internal/logging"
)

// recentTransitionCount is how many transitions Report includes.
const recentTransitionCount = 10

// Store tracks task lifecycle states with dependency-gated availability.
// All mutating methods hold one mutex and persist a full snapshot on
// success. Snapshot I/O failures are logged and counted, never returned:
// in-memory state stays authoritative while durability lags.
type Store struct {
	mu           sync.Mutex
	states       map[string]*TaskState
	transitions  []TransitionRecord
	path         string // empty disables persistence
	lastUpdated  time.Time
	snapshotErrs int
	log          logging.Logger
}

// Open creates a Store persisting to path. If the snapshot file already
// exists its contents are loaded; a missing file is not an error.
func Open(path string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NopLogger{}
	}
	s := &Store{
		states: make(map[string]*TaskState),
		path:   path,
		log:    log,
	}
	if path != "" {
		if err := s.loadSnapshot(path); err != nil {
			return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
		}
	}
	return s, nil
}

// NewInMemory creates a Store with persistence disabled. Used in tests and
// by callers that only need the in-process state machine.
func NewInMemory(log logging.Logger) *Store {
	s, _ := Open("", log)
	return s
}

// Create registers a new task state with status PENDING.
func (s *Store) Create(id, name, owner string, deliverables, dependencies []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[id]; exists {
		return fmt.Errorf("state %q: %w", id, ErrExists)
	}

	s.states[id] = &TaskState{
		ID:           id,
		Name:         name,
		Status:       StatusPending,
		Owner:        owner,
		Dependencies: append([]string(nil), dependencies...),
		Deliverables: append([]string(nil), deliverables...),
		CreatedAt:    time.Now().UTC(),
		Metadata:     map[string]string{},
	}
	s.commitLocked()
	return nil
}

// Activate moves a task from PENDING to ACTIVE and records the transition.
// Any other current status returns ErrInvalidTransition and leaves the
// record untouched, so calling Activate twice yields exactly one transition.
func (s *Store) Activate(id string) error {
	return s.transition(id, StatusActive, "activate", "", func(ts *TaskState) {
		now := time.Now().UTC()
		ts.StartedAt = &now
	})
}

// Complete moves a task from ACTIVE to COMPLETED, forces progress to 100,
// and optionally appends additional deliverables.
func (s *Store) Complete(id string, deliverables ...string) error {
	return s.transition(id, StatusCompleted, "complete", "", func(ts *TaskState) {
		now := time.Now().UTC()
		ts.CompletedAt = &now
		ts.Progress = 100
		ts.Deliverables = append(ts.Deliverables, deliverables...)
	})
}

// Fail moves a task from ACTIVE to FAILED, recording the reason in metadata.
func (s *Store) Fail(id, reason string) error {
	return s.transition(id, StatusFailed, "fail", "", func(ts *TaskState) {
		now := time.Now().UTC()
		ts.CompletedAt = &now
		ts.Metadata["failure_reason"] = reason
	})
}

// Block moves a PENDING or ACTIVE task to BLOCKED.
func (s *Store) Block(id, reason string) error {
	return s.transition(id, StatusBlocked, "block", "", func(ts *TaskState) {
		ts.Metadata["block_reason"] = reason
	})
}

// Unblock returns a BLOCKED task to PENDING.
func (s *Store) Unblock(id string) error {
	return s.transition(id, StatusPending, "unblock", "", func(ts *TaskState) {
		delete(ts.Metadata, "block_reason")
	})
}

// transition applies a status change if the legal-edge table allows it.
func (s *Store) transition(id string, to TaskStatus, trigger, agentID string, mutate func(*TaskState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, exists := s.states[id]
	if !exists {
		return fmt.Errorf("state %q: %w", id, ErrNotFound)
	}
	if !CanTransition(ts.Status, to) {
		return fmt.Errorf("state %q: %s -> %s: %w", id, ts.Status, to, ErrInvalidTransition)
	}
	if agentID == "" {
		agentID = ts.Owner
	}

	from := ts.Status
	ts.Status = to
	if mutate != nil {
		mutate(ts)
	}

	s.transitions = append(s.transitions, TransitionRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Trigger:   trigger,
		TaskID:    id,
		AgentID:   agentID,
	})
	s.commitLocked()
	return nil
}

// UpdateProgress sets the progress percentage of an ACTIVE task, clamped
// to [0,100]. Progress updates do not create transition records.
func (s *Store) UpdateProgress(id string, pct float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, exists := s.states[id]
	if !exists {
		return fmt.Errorf("state %q: %w", id, ErrNotFound)
	}
	if ts.Status != StatusActive {
		return fmt.Errorf("state %q: progress update in %s: %w", id, ts.Status, ErrInvalidTransition)
	}

	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	ts.Progress = pct
	s.commitLocked()
	return nil
}

// Get returns a copy of a task state.
func (s *Store) Get(id string) (TaskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, exists := s.states[id]
	if !exists {
		return TaskState{}, fmt.Errorf("state %q: %w", id, ErrNotFound)
	}
	return cloneState(ts), nil
}

// AvailableTasks returns every PENDING task whose dependencies are all
// COMPLETED. Recomputed from scratch on each call; results are sorted by
// id for deterministic output.
func (s *Store) AvailableTasks() []TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := []TaskState{}
	for _, ts := range s.states {
		if ts.Status != StatusPending {
			continue
		}
		if s.dependenciesMetLocked(ts) {
			available = append(available, cloneState(ts))
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })
	return available
}

// dependenciesMetLocked reports whether every dependency of ts is COMPLETED.
// An unknown dependency id counts as unmet.
func (s *Store) dependenciesMetLocked(ts *TaskState) bool {
	for _, depID := range ts.Dependencies {
		dep, exists := s.states[depID]
		if !exists || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Workload summarizes one agent's tasks partitioned by status.
type Workload struct {
	AgentID       string             `json:"agent_id"`
	Counts        map[TaskStatus]int `json:"counts"`
	ActiveTaskIDs []string           `json:"active_task_ids"`
	Total         int                `json:"total"`
}

// AgentWorkload returns per-status counts and active task ids for an agent.
// The per-status counts always sum to Total.
func (s *Store) AgentWorkload(agentID string) Workload {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := Workload{
		AgentID:       agentID,
		Counts:        make(map[TaskStatus]int),
		ActiveTaskIDs: []string{},
	}
	for _, ts := range s.states {
		if ts.Owner != agentID {
			continue
		}
		w.Counts[ts.Status]++
		w.Total++
		if ts.Status == StatusActive {
			w.ActiveTaskIDs = append(w.ActiveTaskIDs, ts.ID)
		}
	}
	sort.Strings(w.ActiveTaskIDs)
	return w
}

// Report is the aggregate view over the store.
type Report struct {
	TotalStates       int                `json:"total_states"`
	StatusCounts      map[TaskStatus]int `json:"status_counts"`
	CompletionRate    float64            `json:"completion_rate"`
	RecentTransitions []TransitionRecord `json:"recent_transitions"`
	SnapshotErrors    int                `json:"snapshot_errors"`
	LastUpdated       time.Time          `json:"last_updated"`
}

// Report returns aggregate totals, the completion rate as a percentage, and
// the most recent transitions.
func (s *Store) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		TotalStates:    len(s.states),
		StatusCounts:   make(map[TaskStatus]int),
		SnapshotErrors: s.snapshotErrs,
		LastUpdated:    s.lastUpdated,
	}
	for _, ts := range s.states {
		r.StatusCounts[ts.Status]++
	}
	if r.TotalStates > 0 {
		r.CompletionRate = float64(r.StatusCounts[StatusCompleted]) / float64(r.TotalStates) * 100
	}

	start := len(s.transitions) - recentTransitionCount
	if start < 0 {
		start = 0
	}
	r.RecentTransitions = append([]TransitionRecord(nil), s.transitions[start:]...)
	return r
}

// Transitions returns a copy of the full transition log, ordered oldest
// first.
func (s *Store) Transitions() []TransitionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TransitionRecord(nil), s.transitions...)
}

// commitLocked stamps the update time and writes the snapshot. Persistence
// failures are logged and counted but never propagated; the caller's
// mutation has already taken effect in memory.
func (s *Store) commitLocked() {
	s.lastUpdated = time.Now().UTC()
	if s.path == "" {
		return
	}
	if err := s.saveSnapshotLocked(); err != nil {
		s.snapshotErrs++
		s.log.Error("snapshot write failed", "path", s.path, "error", err)
	}
}
