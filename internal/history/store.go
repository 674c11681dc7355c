// Package history archives transition records and delivery outcomes to
// SQLite so report consumers can read past the in-memory window. Tables
// are append-only; nothing in this package updates or deletes rows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/agentcoord/internal/state"
)

// Store is the SQLite-backed archive.
type Store struct {
	db *sql.DB
}

// Open creates a store at the given path. Creates parent directories if
// needed. Enables WAL mode and a busy timeout.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

// OpenMemory creates an in-memory store for testing. A shared cache lets
// multiple connections see the same database.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTransition appends one transition record.
func (s *Store) SaveTransition(ctx context.Context, rec state.TransitionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (id, task_id, agent_id, from_status, to_status, trigger_label, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TaskID, rec.AgentID, string(rec.From), string(rec.To), rec.Trigger, rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// Transitions returns the archived transitions for one task, oldest first.
func (s *Store) Transitions(ctx context.Context, taskID string) ([]state.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_id, from_status, to_status, trigger_label, occurred_at
		FROM transitions
		WHERE task_id = ?
		ORDER BY seq
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []state.TransitionRecord
	for rows.Next() {
		var rec state.TransitionRecord
		var from, to, ts string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.AgentID, &from, &to, &rec.Trigger, &ts); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		rec.From = state.TaskStatus(from)
		rec.To = state.TaskStatus(to)
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return out, nil
}

// DeliveryRecord is one archived delivery outcome.
type DeliveryRecord struct {
	MessageID  string
	AgentID    string
	Channel    string
	Success    bool
	Error      string
	OccurredAt time.Time
}

// SaveDelivery appends one delivery outcome.
func (s *Store) SaveDelivery(ctx context.Context, rec DeliveryRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (message_id, agent_id, channel, success, error, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.MessageID, rec.AgentID, rec.Channel, success, rec.Error, rec.OccurredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	return nil
}

// Deliveries returns the archived outcomes for one message, oldest first.
func (s *Store) Deliveries(ctx context.Context, messageID string) ([]DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, agent_id, channel, success, error, occurred_at
		FROM deliveries
		WHERE message_id = ?
		ORDER BY seq
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var rec DeliveryRecord
		var success int
		var ts string
		if err := rows.Scan(&rec.MessageID, &rec.AgentID, &rec.Channel, &success, &rec.Error, &ts); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		rec.Success = success == 1
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.OccurredAt = parsed
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return out, nil
}

// FailedDeliveryCount returns how many archived deliveries failed.
func (s *Store) FailedDeliveryCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries WHERE success = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting failed deliveries: %w", err)
	}
	return n, nil
}
