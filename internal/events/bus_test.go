package events

import (
	"fmt"
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)

	bus.Publish(TopicTask, TaskCreatedEvent{
		ID:        "task-1",
		Title:     "Build X",
		Priority:  "high",
		Timestamp: time.Now(),
	})

	select {
	case received := <-ch:
		if received.Subject() != "task-1" {
			t.Errorf("subject = %q, want task-1", received.Subject())
		}
		if received.EventType() != EventTypeTaskCreated {
			t.Errorf("event type = %q, want %q", received.EventType(), EventTypeTaskCreated)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestTopicIsolation verifies a subscriber only sees its own topic.
func TestTopicIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 10)
	bus.Publish(TopicDelivery, DeliveryResultEvent{MessageID: "m1", Success: true, Timestamp: time.Now()})

	select {
	case ev := <-taskCh:
		t.Fatalf("task subscriber received %s event", ev.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSubscribeAll verifies one channel can observe every topic.
func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(10)
	bus.Publish(TopicTask, TaskAssignedEvent{ID: "t1", AgentID: "a1", Timestamp: time.Now()})
	bus.Publish(TopicDelivery, DeliveryResultEvent{MessageID: "m1", Success: false, Err: "down", Timestamp: time.Now()})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-all:
			got[ev.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout after %d events", i)
		}
	}
	if !got[EventTypeTaskAssigned] || !got[EventTypeDeliveryResult] {
		t.Errorf("received types: %v", got)
	}
}

// TestNonBlockingPublish verifies publishing never blocks on full buffers.
func TestNonBlockingPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Subscribe(TopicMessage, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 50; i++ {
			bus.Publish(TopicMessage, MessageEnqueuedEvent{
				ID:        fmt.Sprintf("m-%d", i),
				Sender:    "tester",
				Timestamp: time.Now(),
			})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("publisher blocked on full subscriber buffer")
	}
}

// TestCloseIdempotent verifies Close can be called twice and channels close.
func TestCloseIdempotent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicTask, 1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("channel still open after close")
	}

	// Publish after close is a no-op, not a panic.
	bus.Publish(TopicTask, TaskCreatedEvent{ID: "t1", Timestamp: time.Now()})
}

// TestSubscribeAfterClose returns a closed channel.
func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch := bus.Subscribe(TopicTask, 1)
	if _, ok := <-ch; ok {
		t.Error("subscription after close returned open channel")
	}
}
