package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// pragmas are applied once after open; the pool is pinned to one connection.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// InitDB opens (creating if needed) the daemon's SQLite file and applies the
// schema for the persisted tree, the event log and operators.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	fail := func(err error) (*sql.DB, error) {
		_ = db.Close()
		return nil, err
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fail(fmt.Errorf("%s: %w", p, err))
		}
	}
	if err := ensureSchema(db); err != nil {
		return fail(err)
	}
	if err := db.Ping(); err != nil {
		return fail(fmt.Errorf("ping sqlite: %w", err))
	}
	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaStoreTree = `
CREATE TABLE IF NOT EXISTS store_tree (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    doc TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaStoreEvents = `
CREATE TABLE IF NOT EXISTS store_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaStoreEventsIndex = `
CREATE INDEX IF NOT EXISTS idx_store_events_time ON store_events (occurred_at);
`

const schemaStoreEventsPathIndex = `
CREATE INDEX IF NOT EXISTS idx_store_events_path ON store_events (path, occurred_at);
`

const schemaOperators = `
CREATE TABLE IF NOT EXISTS operators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{
		schemaStoreTree,
		schemaStoreEvents,
		schemaStoreEventsIndex,
		schemaStoreEventsPathIndex,
		schemaOperators,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
