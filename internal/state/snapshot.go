package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// snapshotDoc is the on-disk persistence document. A reload must reproduce
// identical AvailableTasks and Report results, not byte-identical content.
type snapshotDoc struct {
	States      map[string]*TaskState `json:"states"`
	Transitions []TransitionRecord    `json:"transitions"`
	LastUpdated time.Time             `json:"last_updated"`
}

// saveSnapshotLocked writes the full store state to s.path atomically
// (temp file + rename). Caller must hold s.mu.
func (s *Store) saveSnapshotLocked() error {
	doc := snapshotDoc{
		States:      s.states,
		Transitions: s.transitions,
		LastUpdated: s.lastUpdated,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// loadSnapshot restores store state from an existing snapshot file.
// A missing file is not an error; malformed JSON is.
func (s *Store) loadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	// ENOTDIR means a path component is not a directory; like a plain
	// missing file, there is simply no snapshot to load yet.
	if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}

	if doc.States != nil {
		s.states = doc.States
	}
	for id, ts := range s.states {
		// Tolerate hand-edited files with a missing or mismatched id field.
		if ts.ID == "" {
			ts.ID = id
		}
		if ts.Metadata == nil {
			ts.Metadata = map[string]string{}
		}
	}
	s.transitions = doc.Transitions
	s.lastUpdated = doc.LastUpdated
	return nil
}
