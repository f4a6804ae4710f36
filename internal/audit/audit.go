// Package audit records exec/scp/pty invocations to a local SQLite
// database, the way cmd/sshcorectl's "logs" subcommand inspects history.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and provides the logging/query methods
// used by cmd/sshcorectl.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the SQLite database at path, enabling WAL mode for
// concurrent readers while a long-running command is still appending.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("audit: failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection, checkpointing the WAL first so a
// reader opening the plain .db file afterwards sees everything.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,       -- "exec", "scp", or "pty"
		host TEXT NOT NULL,
		user TEXT NOT NULL,
		command TEXT NOT NULL,
		exit_code INTEGER,
		exit_kind TEXT NOT NULL,  -- "code", "signal", "channel_closed"
		duration_ms INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
	CREATE INDEX IF NOT EXISTS idx_invocations_host ON invocations(host);
	CREATE INDEX IF NOT EXISTS idx_invocations_kind ON invocations(kind);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Invocation is one recorded exec/scp/pty run. ID is assigned by Log if
// left empty, so callers never need to generate one themselves.
type Invocation struct {
	ID         string
	Kind       string
	Host       string
	User       string
	Command    string
	ExitCode   int64
	ExitKind   string
	DurationMS int64
	StartedAt  time.Time
	Error      string
}

// Log records one invocation. Retries briefly on SQLITE_BUSY since a
// concurrent `sshcorectl logs` read should never block a running command
// from finishing its own write.
func (db *DB) Log(inv Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.conn.Exec(
			`INSERT INTO invocations
				(id, kind, host, user, command, exit_code, exit_kind, duration_ms, started_at, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.Kind, inv.Host, inv.User, inv.Command, inv.ExitCode, inv.ExitKind,
			inv.DurationMS, inv.StartedAt, inv.Error,
		)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "SQLITE_BUSY") {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return err
	}
	return fmt.Errorf("audit: failed to log invocation after %d retries: database locked", maxRetries)
}

// Recent returns the most recent invocations, newest first.
func (db *DB) Recent(limit int) ([]Invocation, error) {
	rows, err := db.conn.Query(
		`SELECT id, kind, host, user, command, exit_code, exit_kind, duration_ms, started_at, error
		 FROM invocations
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.ID, &inv.Kind, &inv.Host, &inv.User, &inv.Command,
			&inv.ExitCode, &inv.ExitKind, &inv.DurationMS, &inv.StartedAt, &inv.Error); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RecentForHost returns the most recent invocations against host, newest first.
func (db *DB) RecentForHost(host string, limit int) ([]Invocation, error) {
	rows, err := db.conn.Query(
		`SELECT id, kind, host, user, command, exit_code, exit_kind, duration_ms, started_at, error
		 FROM invocations
		 WHERE host = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		host, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.ID, &inv.Kind, &inv.Host, &inv.User, &inv.Command,
			&inv.ExitCode, &inv.ExitKind, &inv.DurationMS, &inv.StartedAt, &inv.Error); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
