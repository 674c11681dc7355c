package delivery

import (
	"time"
)

// MessageType classifies how a message is routed.
type MessageType string

const (
	MessageDirect    MessageType = "direct"    // Point-to-point
	MessageBroadcast MessageType = "broadcast" // One sender, many recipients
	MessageSystem    MessageType = "system"    // Emitted by the coordinator itself
)

// Priority orders messages for formatting decoration; it does not reorder
// the queue, which stays FIFO.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Message is a routed unit of communication between agents.
type Message struct {
	ID         string      `json:"id"`
	Sender     string      `json:"sender"`
	Recipients []string    `json:"recipients"`
	Type       MessageType `json:"type"`
	Priority   Priority    `json:"priority"`
	Content    string      `json:"content"`
	Tags       []string    `json:"tags,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
