package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Subject() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicMessage  = "message"
	TopicDelivery = "delivery"
)

// Event type constants
const (
	EventTypeTaskCreated     = "task.created"
	EventTypeTaskAssigned    = "task.assigned"
	EventTypeTaskStatus      = "task.status"
	EventTypeMessageEnqueued = "message.enqueued"
	EventTypeDeliveryResult  = "delivery.result"
	EventTypeSessionExpired  = "session.expired"
)

// TaskCreatedEvent is published when the coordination engine creates a task.
type TaskCreatedEvent struct {
	ID        string
	Title     string
	Priority  string
	Timestamp time.Time
}

func (e TaskCreatedEvent) EventType() string { return EventTypeTaskCreated }
func (e TaskCreatedEvent) Subject() string   { return e.ID }

// TaskAssignedEvent is published when a task is assigned to an agent.
type TaskAssignedEvent struct {
	ID        string
	AgentID   string
	Timestamp time.Time
}

func (e TaskAssignedEvent) EventType() string { return EventTypeTaskAssigned }
func (e TaskAssignedEvent) Subject() string   { return e.ID }

// TaskStatusEvent is published when a task changes status, including the
// maintenance pass marking overdue tasks blocked.
type TaskStatusEvent struct {
	ID        string
	From      string
	To        string
	Trigger   string
	Timestamp time.Time
}

func (e TaskStatusEvent) EventType() string { return EventTypeTaskStatus }
func (e TaskStatusEvent) Subject() string   { return e.ID }

// MessageEnqueuedEvent is published when a message enters the engine queue.
type MessageEnqueuedEvent struct {
	ID         string
	Sender     string
	Recipients int
	Timestamp  time.Time
}

func (e MessageEnqueuedEvent) EventType() string { return EventTypeMessageEnqueued }
func (e MessageEnqueuedEvent) Subject() string   { return e.ID }

// DeliveryResultEvent is published for every delivery attempt outcome.
type DeliveryResultEvent struct {
	MessageID string
	AgentID   string
	Channel   string
	Success   bool
	Err       string
	Timestamp time.Time
}

func (e DeliveryResultEvent) EventType() string { return EventTypeDeliveryResult }
func (e DeliveryResultEvent) Subject() string   { return e.MessageID }

// SessionExpiredEvent is published when the maintenance pass evicts a
// coordination session past its end time.
type SessionExpiredEvent struct {
	ID        string
	Mode      string
	Timestamp time.Time
}

func (e SessionExpiredEvent) EventType() string { return EventTypeSessionExpired }
func (e SessionExpiredEvent) Subject() string   { return e.ID }
