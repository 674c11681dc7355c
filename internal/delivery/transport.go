package delivery

import (
	"context"

	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
)

// Transport executes the side-effect of handing a formatted payload to one
// target. Implementations report failure through the returned error; the
// gateway converts everything, panics included, into failure results.
type Transport interface {
	// Name identifies the channel in stats and target descriptors.
	Name() string
	// Send delivers one payload to one target.
	Send(ctx context.Context, payload Payload, target registry.Target) error
}

// LogTransport writes payloads to the structured log. It is the default
// sink when an agent has no richer target configured, and what keeps
// delivery observable in single-process deployments.
type LogTransport struct {
	log logging.Logger
}

// NewLogTransport creates a log-backed transport.
func NewLogTransport(log logging.Logger) *LogTransport {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(ctx context.Context, payload Payload, target registry.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.log.Info("message delivered",
		"message_id", payload.MessageID,
		"sender", payload.Sender,
		"recipient", target.AgentID,
		"priority", payload.Priority,
		"subject", payload.Subject,
	)
	return nil
}

// FuncTransport adapts a function into a Transport. Used by tests to
// simulate per-target failures.
type FuncTransport struct {
	ChannelName string
	Fn          func(ctx context.Context, payload Payload, target registry.Target) error
}

func (t *FuncTransport) Name() string {
	if t.ChannelName == "" {
		return "func"
	}
	return t.ChannelName
}

func (t *FuncTransport) Send(ctx context.Context, payload Payload, target registry.Target) error {
	return t.Fn(ctx, payload, target)
}
