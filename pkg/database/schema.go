package database

import "fmt"

// Schema statements for the admission audit store. Events and closed-slot
// records are append-only; the core never reads them back for decisions.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS admission_events (
		id          UUID PRIMARY KEY,
		event_type  VARCHAR(64) NOT NULL,
		slot_id     BIGINT NOT NULL DEFAULT 0,
		principal   TEXT NOT NULL DEFAULT '',
		urgency     SMALLINT,
		reason      TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_admission_events_slot ON admission_events(slot_id)`,
	`CREATE INDEX IF NOT EXISTS idx_admission_events_type ON admission_events(event_type)`,
	`CREATE TABLE IF NOT EXISTS slot_records (
		id               BIGINT PRIMARY KEY,
		state            VARCHAR(16) NOT NULL,
		assigned         BOOLEAN NOT NULL,
		assigned_to      TEXT,
		assigned_urgency SMALLINT,
		created_at       TIMESTAMPTZ NOT NULL,
		assigned_at      TIMESTAMPTZ,
		capacity         SMALLINT NOT NULL,
		bookings         SMALLINT NOT NULL
	)`,
}

// EnsureSchema creates the audit tables if they do not exist
func (db *DB) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.logger.Info("Database schema ensured")
	return nil
}
