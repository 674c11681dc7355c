package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aristath/agentcoord/internal/logging"
)

// TestSnapshotRoundTrip verifies that reloading a snapshot into a fresh
// store reproduces AvailableTasks and Report exactly.
func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.json")

	s, err := Open(path, logging.NopLogger{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	s.Create("S1", "Build X", "Agent-1", []string{"doc"}, nil)
	s.Create("S2", "Test X", "Agent-2", nil, []string{"S1"})
	s.Create("S3", "Ship X", "Agent-1", nil, []string{"S2"})
	s.Activate("S1")
	s.Complete("S1")

	before := s.Report()
	beforeAvail := s.AvailableTasks()

	reloaded, err := Open(path, logging.NopLogger{})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	after := reloaded.Report()
	afterAvail := reloaded.AvailableTasks()

	if !reflect.DeepEqual(before.StatusCounts, after.StatusCounts) {
		t.Errorf("status counts differ: %v vs %v", before.StatusCounts, after.StatusCounts)
	}
	if before.CompletionRate != after.CompletionRate {
		t.Errorf("completion rate differs: %v vs %v", before.CompletionRate, after.CompletionRate)
	}
	if !reflect.DeepEqual(before.RecentTransitions, after.RecentTransitions) {
		t.Errorf("recent transitions differ")
	}
	if !reflect.DeepEqual(beforeAvail, afterAvail) {
		t.Errorf("available tasks differ: %v vs %v", beforeAvail, afterAvail)
	}

	// The reloaded store keeps enforcing transitions.
	if err := reloaded.Activate("S2"); err != nil {
		t.Errorf("activate after reload failed: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := Open(path, logging.NopLogger{})
	if err != nil {
		t.Fatalf("open with missing file failed: %v", err)
	}
	if got := s.Report().TotalStates; got != 0 {
		t.Errorf("total states = %d, want 0", got)
	}
}

func TestOpenMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, logging.NopLogger{}); err == nil {
		t.Error("open with malformed file succeeded, want error")
	}
}

// TestSnapshotFailureIsSwallowed points the store at an unwritable path:
// mutations still succeed in memory and the failure shows up in the report.
func TestSnapshotFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	// A snapshot path whose parent is a regular file cannot be created.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(blocker, "states.json")

	s, err := Open(path, logging.NopLogger{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Create("S1", "Build X", "Agent-1", nil, nil); err != nil {
		t.Fatalf("create failed despite snapshot error: %v", err)
	}

	got, err := s.Get("S1")
	if err != nil || got.Status != StatusPending {
		t.Errorf("in-memory state wrong after snapshot failure: %v %v", got, err)
	}
	if s.Report().SnapshotErrors == 0 {
		t.Error("snapshot error not counted")
	}
}
