// Package coordination implements the task assignment and asynchronous
// message routing engine: an in-memory task and session map behind one
// mutex, an agent capability view over the shared registry, and a FIFO
// message queue drained by a single background worker.
package coordination

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/agentcoord/internal/delivery"
	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
	"github.com/aristath/agentcoord/internal/state"
)

// Config tunes engine behavior. Zero values fall back to defaults.
type Config struct {
	QueueSize     int           // Message queue capacity (default 256)
	WorkerTimeout time.Duration // Queue pop timeout per loop iteration (default 200ms)
	SessionTTL    time.Duration // Default session lifetime (default 30m)
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = 200 * time.Millisecond
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	return c
}

// Engine owns task creation and assignment, coordination sessions, and the
// message queue. Shared maps are guarded by one mutex; the queue is a
// buffered channel and needs no extra locking.
type Engine struct {
	cfg     Config
	reg     *registry.Registry
	gateway *delivery.Gateway
	bus     *events.Bus
	log     logging.Logger

	mu       sync.Mutex
	tasks    map[string]*Task
	sessions map[string]*Session

	queue chan delivery.Message
	stop  chan struct{}
	done  chan struct{}

	now func() time.Time // overridable in tests
}

// NewEngine creates an engine. The registry and gateway are injected by
// the process entry point; there is no package-level default instance.
func NewEngine(reg *registry.Registry, gateway *delivery.Gateway, bus *events.Bus, log logging.Logger, cfg Config) *Engine {
	if log == nil {
		log = logging.NopLogger{}
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		reg:      reg,
		gateway:  gateway,
		bus:      bus,
		log:      log,
		tasks:    make(map[string]*Task),
		sessions: make(map[string]*Session),
		queue:    make(chan delivery.Message, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// RegisterAgent upserts an agent in the shared registry. Re-registration
// resets availability and load.
func (e *Engine) RegisterAgent(id string, capabilities, specializations []string) {
	e.reg.Register(id, capabilities, specializations)
	e.log.Info("agent registered", "agent_id", id, "capabilities", capabilities)
}

// CreateTask stores a new PENDING task and returns its generated id.
func (e *Engine) CreateTask(spec TaskSpec) (string, error) {
	if spec.Title == "" {
		return "", fmt.Errorf("task title required")
	}
	if spec.Priority == "" {
		spec.Priority = PriorityMedium
	}

	task := &Task{
		ID:             uuid.NewString(),
		Title:          spec.Title,
		Description:    spec.Description,
		Priority:       spec.Priority,
		Status:         state.StatusPending,
		Assignees:      append([]string(nil), spec.Assignees...),
		EstimatedHours: spec.EstimatedHours,
		Tags:           append([]string(nil), spec.Tags...),
		DueAt:          spec.DueAt,
		CreatedAt:      e.now().UTC(),
	}

	e.mu.Lock()
	e.tasks[task.ID] = task
	e.mu.Unlock()

	e.publish(events.TopicTask, events.TaskCreatedEvent{
		ID:        task.ID,
		Title:     task.Title,
		Priority:  string(task.Priority),
		Timestamp: e.now().UTC(),
	})
	return task.ID, nil
}

// AssignTask adds an agent to a task and activates it if still pending.
// Fails when either id is unknown or the agent is at capacity; the
// capacity check keeps agent load within its declared maximum.
func (e *Engine) AssignTask(taskID, agentID string) error {
	if _, err := e.reg.Lookup(agentID); err != nil {
		return err
	}

	e.mu.Lock()
	task, ok := e.tasks[taskID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}
	if task.Status != state.StatusPending && task.Status != state.StatusActive {
		e.mu.Unlock()
		return fmt.Errorf("task %q in %s: %w", taskID, task.Status, ErrInvalidStatus)
	}
	for _, a := range task.Assignees {
		if a == agentID {
			e.mu.Unlock()
			return nil // already assigned, idempotent
		}
	}

	// Reserve capacity before mutating the task, so a full agent never
	// picks up work. This runs under e.mu: the checks above and the
	// mutation below must be one atomic step against concurrent assigns
	// and completions. Lock order is e.mu then reg.mu, never reversed.
	if err := e.reg.AddLoad(agentID); err != nil {
		e.mu.Unlock()
		return err
	}

	task.Assignees = append(task.Assignees, agentID)
	from := task.Status
	if task.Status == state.StatusPending {
		task.Status = state.StatusActive
	}
	to := task.Status
	e.mu.Unlock()

	e.publish(events.TopicTask, events.TaskAssignedEvent{ID: taskID, AgentID: agentID, Timestamp: e.now().UTC()})
	if from != to {
		e.publish(events.TopicTask, events.TaskStatusEvent{
			ID: taskID, From: string(from), To: string(to), Trigger: "assign", Timestamp: e.now().UTC(),
		})
	}
	return nil
}

// UpdateTaskStatus changes a task's status through the shared legal-edge
// table. There is deliberately no arbitrary-overwrite path: the engine and
// the state store enforce the same state machine.
func (e *Engine) UpdateTaskStatus(taskID string, status state.TaskStatus, progress ...float64) error {
	e.mu.Lock()
	task, ok := e.tasks[taskID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}
	if !state.CanTransition(task.Status, status) {
		e.mu.Unlock()
		return fmt.Errorf("task %q: %s -> %s: %w", taskID, task.Status, status, ErrInvalidStatus)
	}

	from := task.Status
	task.Status = status
	if len(progress) > 0 {
		pct := progress[0]
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		task.Progress = pct
	}
	if status == state.StatusCompleted {
		task.Progress = 100
	}
	assignees := append([]string(nil), task.Assignees...)
	e.mu.Unlock()

	// Terminal states release assignee capacity.
	if status == state.StatusCompleted || status == state.StatusFailed {
		for _, agentID := range assignees {
			if err := e.reg.ReleaseLoad(agentID); err != nil {
				e.log.Warn("release load failed", "agent_id", agentID, "error", err)
			}
		}
	}

	e.publish(events.TopicTask, events.TaskStatusEvent{
		ID: taskID, From: string(from), To: string(status), Trigger: "update", Timestamp: e.now().UTC(),
	})
	return nil
}

// Task returns a copy of one task.
func (e *Engine) Task(taskID string) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}
	return cloneTask(task), nil
}

// AgentTasks returns every task the agent is assigned to.
func (e *Engine) AgentTasks(agentID string) []Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []Task{}
	for _, task := range e.tasks {
		for _, a := range task.Assignees {
			if a == agentID {
				out = append(out, cloneTask(task))
				break
			}
		}
	}
	return out
}

// AvailableAgents returns available agents under capacity holding every
// required capability.
func (e *Engine) AvailableAgents(requiredCapabilities ...string) []registry.Agent {
	return e.reg.Available(requiredCapabilities...)
}

// CreateSession opens a coordination session in one of the enumerated
// modes. The session expires after the configured TTL and is evicted by
// the maintenance pass.
func (e *Engine) CreateSession(mode SessionMode, participants, agenda []string) (Session, error) {
	if !validModes[mode] {
		return Session{}, fmt.Errorf("mode %q: %w", mode, ErrUnknownMode)
	}

	now := e.now().UTC()
	session := &Session{
		ID:           uuid.NewString(),
		Mode:         mode,
		Participants: append([]string(nil), participants...),
		Agenda:       append([]string(nil), agenda...),
		StartAt:      now,
		EndAt:        now.Add(e.cfg.SessionTTL),
		Decisions:    []Decision{},
	}

	e.mu.Lock()
	e.sessions[session.ID] = session
	e.mu.Unlock()

	return cloneSession(session), nil
}

// RecordDecision appends a decision to a session. The decision list is
// append-only; nothing removes or rewrites entries.
func (e *Engine) RecordDecision(sessionID, agentID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrSessionExpired)
	}
	session.Decisions = append(session.Decisions, Decision{
		Text:      text,
		AgentID:   agentID,
		Timestamp: e.now().UTC(),
	})
	return nil
}

// Session returns a copy of one session.
func (e *Engine) Session(sessionID string) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("session %q: %w", sessionID, ErrSessionExpired)
	}
	return cloneSession(session), nil
}

// SendMessage enqueues a message for asynchronous delivery and returns its
// generated id immediately. Delivery is best-effort fire-and-forget; a
// full queue returns ErrQueueFull rather than blocking the caller.
func (e *Engine) SendMessage(sender string, recipients []string, msgType delivery.MessageType, content string, priority delivery.Priority) (string, error) {
	msg := delivery.Message{
		ID:         uuid.NewString(),
		Sender:     sender,
		Recipients: append([]string(nil), recipients...),
		Type:       msgType,
		Priority:   priority,
		Content:    content,
		CreatedAt:  e.now().UTC(),
	}

	select {
	case e.queue <- msg:
	default:
		return "", fmt.Errorf("message from %q: %w", sender, ErrQueueFull)
	}

	e.publish(events.TopicMessage, events.MessageEnqueuedEvent{
		ID:         msg.ID,
		Sender:     sender,
		Recipients: len(recipients),
		Timestamp:  e.now().UTC(),
	})
	return msg.ID, nil
}

func (e *Engine) publish(topic string, ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, ev)
	}
}
