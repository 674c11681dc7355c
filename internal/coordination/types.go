package coordination

import (
	"errors"
	"time"

	"github.com/aristath/agentcoord/internal/state"
)

// Typed sentinel errors for engine operations.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidStatus  = errors.New("invalid status change")
	ErrUnknownMode    = errors.New("unknown session mode")
	ErrSessionExpired = errors.New("session expired")
	ErrQueueFull      = errors.New("message queue full")
)

// TaskPriority labels relative urgency. It influences formatting and
// reporting, never queue order.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// TaskSpec is the caller-facing description of a new task.
type TaskSpec struct {
	Title          string
	Description    string
	Priority       TaskPriority
	Assignees      []string
	EstimatedHours float64
	Tags           []string
	DueAt          *time.Time
}

// Task is a coordinated unit of work. Status values and legal transitions
// are shared with the state store: assignment activates a pending task,
// there is no separate ASSIGNED state and no transition bypass.
type Task struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Priority       TaskPriority     `json:"priority"`
	Status         state.TaskStatus `json:"status"`
	Assignees      []string         `json:"assignees,omitempty"`
	EstimatedHours float64          `json:"estimated_hours,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	Progress       float64          `json:"progress"`
	DueAt          *time.Time       `json:"due_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// SessionMode enumerates the decision styles a coordination session runs in.
type SessionMode string

const (
	ModeHierarchical  SessionMode = "hierarchical"
	ModeCollaborative SessionMode = "collaborative"
	ModeDemocratic    SessionMode = "democratic"
	ModeEmergency     SessionMode = "emergency"
	ModeInnovation    SessionMode = "innovation"
	ModePresidential  SessionMode = "presidential"
)

var validModes = map[SessionMode]bool{
	ModeHierarchical:  true,
	ModeCollaborative: true,
	ModeDemocratic:    true,
	ModeEmergency:     true,
	ModeInnovation:    true,
	ModePresidential:  true,
}

// Decision is one appended entry in a session's decision list.
type Decision struct {
	Text      string    `json:"text"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a bounded group-decision window. The decision list is
// append-only; sessions past EndAt are evicted by the maintenance pass.
type Session struct {
	ID           string      `json:"id"`
	Mode         SessionMode `json:"mode"`
	Participants []string    `json:"participants"`
	Agenda       []string    `json:"agenda,omitempty"`
	StartAt      time.Time   `json:"start_at"`
	EndAt        time.Time   `json:"end_at"`
	Decisions    []Decision  `json:"decisions"`
}

func cloneTask(t *Task) Task {
	cp := *t
	if t.Assignees != nil {
		cp.Assignees = append([]string(nil), t.Assignees...)
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	return cp
}

func cloneSession(s *Session) Session {
	cp := *s
	cp.Participants = append([]string(nil), s.Participants...)
	if s.Agenda != nil {
		cp.Agenda = append([]string(nil), s.Agenda...)
	}
	if s.Decisions != nil {
		cp.Decisions = append([]Decision(nil), s.Decisions...)
	}
	return cp
}
