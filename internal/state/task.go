package state

import (
	"errors"
	"time"
)

// TaskStatus represents the current lifecycle state of a tracked task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"   // Created, waiting for activation
	StatusActive    TaskStatus = "ACTIVE"    // Work in progress
	StatusCompleted TaskStatus = "COMPLETED" // Finished successfully
	StatusFailed    TaskStatus = "FAILED"    // Finished with error
	StatusBlocked   TaskStatus = "BLOCKED"   // Held back, can return to pending
)

// Typed sentinel errors. Callers distinguish kinds with errors.Is; the
// boundary policy stays fail-open (log and continue), so none of these
// should crash a coordination loop.
var (
	ErrExists            = errors.New("state already exists")
	ErrNotFound          = errors.New("state not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// legalEdges declares the allowed status transitions. Every mutation is
// checked against this table; there is no bypass path.
var legalEdges = map[TaskStatus][]TaskStatus{
	StatusPending: {StatusActive, StatusBlocked},
	StatusActive:  {StatusCompleted, StatusFailed, StatusBlocked},
	StatusBlocked: {StatusPending},
}

// CanTransition reports whether from -> to is a declared legal edge.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskState is the tracked record for one unit of work.
type TaskState struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       TaskStatus        `json:"status"`
	Owner        string            `json:"owner"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Progress     float64           `json:"progress"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Deliverables []string          `json:"deliverables,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// TransitionRecord is one append-only audit entry for a status change.
type TransitionRecord struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	From      TaskStatus `json:"from"`
	To        TaskStatus `json:"to"`
	Trigger   string     `json:"trigger"`
	TaskID    string     `json:"task_id"`
	AgentID   string     `json:"agent_id"`
}

func cloneState(ts *TaskState) TaskState {
	cp := *ts
	if ts.Dependencies != nil {
		cp.Dependencies = append([]string(nil), ts.Dependencies...)
	}
	if ts.Deliverables != nil {
		cp.Deliverables = append([]string(nil), ts.Deliverables...)
	}
	if ts.Metadata != nil {
		cp.Metadata = make(map[string]string, len(ts.Metadata))
		for k, v := range ts.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
