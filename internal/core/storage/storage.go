package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema declares the three related tables of the local store.
//
// Cascading deletes are implemented explicitly by the repositories inside a
// single transaction: sqlite only honors the declared foreign keys when the
// foreign_keys pragma is enabled per connection, which the pooled
// database/sql layer does not guarantee.
const schema = `
CREATE TABLE IF NOT EXISTS routes (
    id TEXT PRIMARY KEY,
    route_ref TEXT NOT NULL,
    vehicle_type TEXT NOT NULL,
    total_stops INTEGER NOT NULL,
    total_distance REAL NOT NULL,
    total_volume REAL NOT NULL,
    total_weight REAL NOT NULL,
    status TEXT NOT NULL,
    sync_status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL REFERENCES routes(id),
    facility_id TEXT NOT NULL,
    facility_name TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    order_volume REAL NOT NULL,
    order_weight REAL NOT NULL,
    stop_number INTEGER NOT NULL,
    distance_from_previous REAL NOT NULL,
    status TEXT NOT NULL,
    verified_at INTEGER,
    sync_status TEXT NOT NULL,
    UNIQUE (route_id, stop_number)
);

CREATE INDEX IF NOT EXISTS idx_deliveries_route_id ON deliveries(route_id);

CREATE TABLE IF NOT EXISTS verifications (
    id TEXT PRIMARY KEY,
    delivery_id TEXT NOT NULL UNIQUE REFERENCES deliveries(id),
    gps_latitude REAL NOT NULL,
    gps_longitude REAL NOT NULL,
    gps_accuracy REAL NOT NULL,
    distance_from_target REAL NOT NULL,
    actual_volume REAL NOT NULL,
    actual_weight REAL NOT NULL,
    comments TEXT,
    signature TEXT,
    photo_ref TEXT,
    verified_at INTEGER NOT NULL,
    remote_event_id TEXT,
    sync_status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_sync_status ON verifications(sync_status);
`

// Open opens (or creates) the sqlite database at the given path and ensures
// the schema exists. The pool is limited to a single connection: the local
// store has single-writer-per-transaction semantics and sqlite serializes
// writers anyway.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenInMemory opens a fresh in-memory database. Used by tests.
func OpenInMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates the local store tables if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
