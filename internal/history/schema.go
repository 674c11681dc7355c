package history

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		agent_id TEXT,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		trigger_label TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_task ON transitions(task_id, seq);

	CREATE TABLE IF NOT EXISTS deliveries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		channel TEXT,
		success INTEGER NOT NULL,
		error TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_message ON deliveries(message_id, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
