// Package audit persists a bounded ring of diagnostic tick events —
// escalations, fallbacks, reconnects, bad frames — to a local SQLite
// database for post-hoc inspection. This is explicitly NOT a persistence
// layer for dispatch state: spec.md §1 states the controller is stateless
// across restarts beyond its bounded history buffer, and nothing here is
// read back into the live control path.
package audit

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Kind classifies one diagnostic event.
type Kind string

const (
	KindEscalation Kind = "escalation"
	KindFallback   Kind = "fallback"
	KindReconnect  Kind = "reconnect"
	KindBadFrame   Kind = "bad_frame"
	KindOracleTimeout Kind = "oracle_timeout"
)

// Event is one diagnostic record.
type Event struct {
	TimestampMs uint32
	Kind        Kind
	Detail      string
}

// DB wraps a bounded SQLite-backed event ring.
type DB struct {
	db       *sql.DB
	capacity int
}

// Migrations returns the audit schema's migration statements — one
// statement per string, executed in order.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tick_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp_ms INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			detail       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tick_events_kind ON tick_events(kind)`,
	}
}

// Open opens (creating if needed) a SQLite database at path and applies
// migrations. capacity bounds the ring: Record trims the oldest rows once
// the table exceeds it.
func Open(path string, capacity int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	for _, stmt := range Migrations() {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("audit: migrate: %w", err)
		}
	}
	if capacity <= 0 {
		capacity = 10_000
	}
	return &DB{db: sqlDB, capacity: capacity}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error { return d.db.Close() }

// Record inserts one event and trims the ring if it has grown past
// capacity.
func (d *DB) Record(e Event) error {
	_, err := d.db.Exec(
		`INSERT INTO tick_events (timestamp_ms, kind, detail) VALUES (?, ?, ?)`,
		e.TimestampMs, string(e.Kind), e.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return d.trim()
}

func (d *DB) trim() error {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM tick_events`).Scan(&count); err != nil {
		return err
	}
	if count <= d.capacity {
		return nil
	}
	excess := count - d.capacity
	_, err := d.db.Exec(
		`DELETE FROM tick_events WHERE id IN (SELECT id FROM tick_events ORDER BY id ASC LIMIT ?)`,
		excess,
	)
	return err
}

// Recent returns the most recent limit events, kind filtering optional
// (empty string matches all kinds), newest last.
func (d *DB) Recent(kind Kind, limit int) ([]Event, error) {
	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = d.db.Query(
			`SELECT timestamp_ms, kind, detail FROM tick_events ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = d.db.Query(
			`SELECT timestamp_ms, kind, detail FROM tick_events WHERE kind = ? ORDER BY id DESC LIMIT ?`,
			string(kind), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var k string
		if err := rows.Scan(&e.TimestampMs, &k, &e.Detail); err != nil {
			return nil, err
		}
		e.Kind = Kind(k)
		out = append(out, e)
	}
	// reverse to oldest-first, matching the ring's natural arrival order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// CountByKind returns the total number of recorded events of kind.
func (d *DB) CountByKind(kind Kind) (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM tick_events WHERE kind = ?`, string(kind)).Scan(&count)
	return count, err
}
