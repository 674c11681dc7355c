package history

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/agentcoord/internal/state"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSaveAndListTransitions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	records := []state.TransitionRecord{
		{ID: "t1", TaskID: "S1", AgentID: "agent-1", From: state.StatusPending, To: state.StatusActive, Trigger: "activate", Timestamp: time.Now().UTC()},
		{ID: "t2", TaskID: "S1", AgentID: "agent-1", From: state.StatusActive, To: state.StatusCompleted, Trigger: "complete", Timestamp: time.Now().UTC()},
		{ID: "t3", TaskID: "S2", AgentID: "agent-2", From: state.StatusPending, To: state.StatusActive, Trigger: "activate", Timestamp: time.Now().UTC()},
	}
	for _, rec := range records {
		if err := store.SaveTransition(ctx, rec); err != nil {
			t.Fatalf("save %s failed: %v", rec.ID, err)
		}
	}

	got, err := store.Transitions(ctx, "S1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	// Insertion order is preserved.
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].From != state.StatusPending || got[0].To != state.StatusActive {
		t.Errorf("statuses = %s -> %s", got[0].From, got[0].To)
	}
}

func TestTransitionsEmptyTask(t *testing.T) {
	store := testStore(t)
	got, err := store.Transitions(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d transitions, want 0", len(got))
	}
}

func TestSaveAndListDeliveries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	recs := []DeliveryRecord{
		{MessageID: "m1", AgentID: "agent-1", Channel: "websocket", Success: true, OccurredAt: time.Now().UTC()},
		{MessageID: "m1", AgentID: "agent-2", Channel: "websocket", Success: false, Error: "unreachable", OccurredAt: time.Now().UTC()},
		{MessageID: "m2", AgentID: "agent-1", Channel: "log", Success: true, OccurredAt: time.Now().UTC()},
	}
	for i, rec := range recs {
		if err := store.SaveDelivery(ctx, rec); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	got, err := store.Deliveries(ctx, "m1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(got))
	}
	if got[1].Success || got[1].Error != "unreachable" {
		t.Errorf("failed delivery record = %+v", got[1])
	}

	failed, err := store.FailedDeliveryCount(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed count = %d, want 1", failed)
	}
}
