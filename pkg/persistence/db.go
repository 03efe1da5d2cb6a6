// Package persistence owns the SQLite-backed schema and prepared operations
// for the Orchestrator State Store (spec §4.3) and the Handoff Manager's
// durable store (spec §4.6). pkg/orchstate and pkg/handoff are thin typed
// façades over this package, keeping raw SQL out of orchestrator logic.
//
// The connection-opening arithmetic (WAL mode, busy timeout, single writer)
// is ported from the teacher's pkg/persistence/db.go. The teacher exposed it
// through a package-level sync.Once singleton; spec §9's REDESIGN FLAG calls
// that pattern out explicitly ("Module-level singletons... -> process-scoped
// services owned by a root composition, passed by reference; no hidden
// globals"), so here Open returns a *DB value with no package state at all.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" //nolint:revive // driver registration side effect
)

// DB wraps a single SQLite connection configured for this module's workload:
// WAL journaling, a busy timeout so concurrent readers don't immediately
// error out against the one writer, and MaxOpenConns(1) because SQLite only
// supports one writer at a time.
type DB struct {
	conn *sql.DB
}

// Open creates (or attaches to) the SQLite database at path, applies the
// schema, and returns a ready-to-use *DB. Callers own the returned value and
// must call Close when done; there is no global to reach for instead.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path,
	))
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("persistence: ping %s: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := applySchema(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("persistence: apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Ops returns a DatabaseOperations bound to this connection.
func (d *DB) Ops() *DatabaseOperations {
	return &DatabaseOperations{conn: d.conn}
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("persistence: close: %w", err)
	}
	return nil
}
