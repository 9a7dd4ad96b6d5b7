// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is the embedded alternative to the Mongo credential store: one file,
// no server. It backs local development (STORE_DRIVER=sqlite) and the
// repository tests, which use ":memory:".
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed to build or cross-compile the server.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/devpulse/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/devpulse.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives and dies with its connection. Pinning the
	// pool to one connection keeps every query on the same database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
//
// SCHEMA NOTES:
//   - email uses COLLATE NOCASE so the UNIQUE index is case-insensitive even
//     if a caller forgets to normalize.
//   - github_id is nullable and UNIQUE: SQLite allows many NULLs in a unique
//     column, so unlinked accounts don't collide.
//   - oauth_states stores instants as unix milliseconds so expiry comparisons
//     are plain integer comparisons.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id                  TEXT PRIMARY KEY,
			email               TEXT NOT NULL UNIQUE COLLATE NOCASE,
			full_name           TEXT NOT NULL DEFAULT '',
			password_hash       TEXT NOT NULL DEFAULT '',
			github_id           INTEGER UNIQUE,
			github_username     TEXT,
			github_avatar_url   TEXT,
			github_access_token TEXT,
			github_linked_at    DATETIME,
			is_active           INTEGER NOT NULL DEFAULT 1,
			is_verified         INTEGER NOT NULL DEFAULT 0,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_states (
			state      TEXT PRIMARY KEY,
			account_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating oauth_states table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column ("accounts.email", "accounts.github_id").
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
