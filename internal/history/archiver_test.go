package history

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/logging"
)

// TestArchiverPersistsDeliveryEvents publishes delivery results on the bus
// and verifies they land in the archive.
func TestArchiverPersistsDeliveryEvents(t *testing.T) {
	store := testStore(t)
	bus := events.NewBus()
	defer bus.Close()

	archiver := NewArchiver(store, bus, logging.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go archiver.Run(ctx)

	bus.Publish(events.TopicDelivery, events.DeliveryResultEvent{
		MessageID: "m1", AgentID: "agent-1", Channel: "log", Success: true, Timestamp: time.Now().UTC(),
	})
	bus.Publish(events.TopicDelivery, events.DeliveryResultEvent{
		MessageID: "m1", AgentID: "agent-2", Channel: "log", Success: false, Err: "down", Timestamp: time.Now().UTC(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := store.Deliveries(context.Background(), "m1")
		if err == nil && len(recs) == 2 {
			if recs[1].Error != "down" {
				t.Errorf("second record = %+v", recs[1])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("delivery events never archived")
}

// TestArchiverBuffersEventsBeforeRun publishes before the drain loop is
// running: the subscription taken at construction must hold the event so
// nothing emitted in the startup window is lost.
func TestArchiverBuffersEventsBeforeRun(t *testing.T) {
	store := testStore(t)
	bus := events.NewBus()
	defer bus.Close()

	archiver := NewArchiver(store, bus, logging.NopLogger{})

	bus.Publish(events.TopicDelivery, events.DeliveryResultEvent{
		MessageID: "early", AgentID: "agent-1", Channel: "log", Success: true, Timestamp: time.Now().UTC(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go archiver.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := store.Deliveries(context.Background(), "early")
		if err == nil && len(recs) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event published before Run was dropped")
}

// TestArchiverPersistsStatusEvents verifies task status changes are
// archived as transitions.
func TestArchiverPersistsStatusEvents(t *testing.T) {
	store := testStore(t)
	bus := events.NewBus()

	archiver := NewArchiver(store, bus, logging.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go archiver.Run(ctx)

	bus.Publish(events.TopicTask, events.TaskStatusEvent{
		ID: "task-1", From: "ACTIVE", To: "BLOCKED", Trigger: "overdue", Timestamp: time.Now().UTC(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := store.Transitions(context.Background(), "task-1")
		if err == nil && len(recs) == 1 {
			if recs[0].Trigger != "overdue" {
				t.Errorf("trigger = %q", recs[0].Trigger)
			}
			bus.Close()
			<-archiver.Done()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("status event never archived")
}
