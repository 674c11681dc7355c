package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/state"
)

// Archiver consumes the event bus and persists delivery outcomes and task
// status changes. Write failures are logged and dropped; archival is an
// observability aid, never a gate on the coordination loop.
type Archiver struct {
	store *Store
	log   logging.Logger
	ch    <-chan events.Event
	done  chan struct{}
}

// NewArchiver creates an archiver over the given store and bus. The
// subscription is taken here, not in Run, so events published between
// construction and the drain loop starting are buffered rather than
// dropped.
func NewArchiver(store *Store, bus *events.Bus, log logging.Logger) *Archiver {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Archiver{
		store: store,
		log:   log,
		ch:    bus.SubscribeAll(256),
		done:  make(chan struct{}),
	}
}

// Run drains the subscription and archives until the context is
// cancelled or the bus closes. Blocks; run it in its own goroutine.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.ch:
			if !ok {
				return
			}
			a.archive(ctx, ev)
		}
	}
}

// Done is closed when Run returns.
func (a *Archiver) Done() <-chan struct{} {
	return a.done
}

func (a *Archiver) archive(ctx context.Context, ev events.Event) {
	switch e := ev.(type) {
	case events.DeliveryResultEvent:
		rec := DeliveryRecord{
			MessageID:  e.MessageID,
			AgentID:    e.AgentID,
			Channel:    e.Channel,
			Success:    e.Success,
			Error:      e.Err,
			OccurredAt: e.Timestamp,
		}
		if err := a.store.SaveDelivery(ctx, rec); err != nil {
			a.log.Error("archiving delivery failed", "message_id", e.MessageID, "error", err)
		}
	case events.TaskStatusEvent:
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		rec := state.TransitionRecord{
			ID:        uuid.NewString(),
			Timestamp: ts,
			From:      state.TaskStatus(e.From),
			To:        state.TaskStatus(e.To),
			Trigger:   e.Trigger,
			TaskID:    e.ID,
		}
		if err := a.store.SaveTransition(ctx, rec); err != nil {
			a.log.Error("archiving status change failed", "task_id", e.ID, "error", err)
		}
	}
}
