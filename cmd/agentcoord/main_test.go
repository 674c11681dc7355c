package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// runCommand executes the root command with the given args and returns the
// captured stdout.
func runCommand(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	// Package-level flag values survive between Execute calls; reset the
	// ones that would leak into the next invocation.
	flagTaskName = ""
	flagTaskOwner = ""
	flagTaskDeps = nil
	flagTaskDeliverables = nil
	flagReason = ""
	out := new(bytes.Buffer)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	return out, rootCmd.Execute()
}

func TestStateLifecycleCommands(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "tasks.json")

	steps := [][]string{
		{"state", "create", "S1", "--snapshot", snapshot, "--name", "design"},
		{"state", "create", "S2", "--snapshot", snapshot, "--dep", "S1"},
		{"state", "activate", "S1", "--snapshot", snapshot},
		{"state", "progress", "S1", "50", "--snapshot", snapshot},
		{"state", "complete", "S1", "design.md", "--snapshot", snapshot},
		{"state", "validate", "--snapshot", snapshot},
		{"state", "report", "--snapshot", snapshot},
		{"state", "available", "--snapshot", snapshot},
		{"state", "workload", "agent-1", "--snapshot", snapshot},
	}
	for _, args := range steps {
		if _, err := runCommand(t, args...); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
	}

	// Snapshot persists across invocations.
	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
}

func TestStateInvalidTransitionFailsCommand(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "tasks.json")

	if _, err := runCommand(t, "state", "create", "S1", "--snapshot", snapshot); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// PENDING -> COMPLETED is not a legal edge.
	if _, err := runCommand(t, "state", "complete", "S1", "--snapshot", snapshot); err == nil {
		t.Fatal("expected non-nil error for illegal transition")
	}
}

func TestStateUnknownTaskFailsCommand(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "tasks.json")

	if _, err := runCommand(t, "state", "activate", "ghost", "--snapshot", snapshot); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

// TestStateMutationsPrintRecord verifies every mutating subcommand prints
// the resulting task record to stdout.
func TestStateMutationsPrintRecord(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "tasks.json")

	out, err := runCommand(t, "state", "create", "S1", "--snapshot", snapshot, "--name", "design")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"S1"`)) {
		t.Errorf("create printed nothing about the task: %q", out.String())
	}

	out, err = runCommand(t, "state", "activate", "S1", "--snapshot", snapshot)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("ACTIVE")) {
		t.Errorf("activate output missing new status: %q", out.String())
	}
}
