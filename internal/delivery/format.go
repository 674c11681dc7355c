package delivery

import (
	"fmt"
	"time"
)

// Payload is the transport-level rendering of a Message for one recipient
// set. Subject carries the priority-decorated headline; Body the content.
type Payload struct {
	MessageID  string    `json:"message_id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Priority   Priority  `json:"priority"`
	Tags       []string  `json:"tags,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Format builds the transport payload for a message. Urgent and high
// priorities get a visible decoration in the subject line so they stand
// out in plain-text sinks.
func Format(msg Message) Payload {
	subject := fmt.Sprintf("[%s] message from %s", msg.Type, msg.Sender)
	switch msg.Priority {
	case PriorityUrgent:
		subject = "!! URGENT !! " + subject
	case PriorityHigh:
		subject = "! " + subject
	}

	return Payload{
		MessageID:  msg.ID,
		Sender:     msg.Sender,
		Recipients: append([]string(nil), msg.Recipients...),
		Subject:    subject,
		Body:       msg.Content,
		Priority:   msg.Priority,
		Tags:       append([]string(nil), msg.Tags...),
		SentAt:     time.Now().UTC(),
	}
}
