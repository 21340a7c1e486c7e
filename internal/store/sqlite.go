// Package store opens the SQLite database that holds the medical knowledge
// base and, by default, the interaction log.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS symptoms (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	symptom                 TEXT NOT NULL UNIQUE,
	description             TEXT NOT NULL DEFAULT '',
	possible_causes         TEXT NOT NULL DEFAULT '',
	self_care_advice        TEXT NOT NULL DEFAULT '',
	when_to_see_doctor      TEXT NOT NULL DEFAULT '',
	emergency_indicators    TEXT NOT NULL DEFAULT '',
	severity_level          TEXT NOT NULL DEFAULT 'low',
	cultural_considerations TEXT NOT NULL DEFAULT '',
	reliability_score       REAL NOT NULL DEFAULT 0.0
);

CREATE TABLE IF NOT EXISTS emergency_protocols (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	condition               TEXT NOT NULL UNIQUE,
	immediate_actions       TEXT NOT NULL DEFAULT '',
	warning_signs           TEXT NOT NULL DEFAULT '',
	emergency_numbers       TEXT NOT NULL DEFAULT '',
	cultural_considerations TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS interaction_logs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id      TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL,
	query           TEXT NOT NULL,
	response        TEXT NOT NULL,
	risk_level      TEXT NOT NULL,
	emergency_alert INTEGER NOT NULL DEFAULT 0,
	intent          TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interaction_logs_user ON interaction_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_interaction_logs_created ON interaction_logs(created_at);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// WAL allows concurrent readers but a single writer.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
