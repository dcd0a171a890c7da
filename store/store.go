// Package store provides persistent server state backed by an embedded
// SQLite database: the users/stats/channels/bans/hardware tables behind
// the relational collaborator interface, plus server-wide settings.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a
// new string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL/DML statements that bring the
// schema up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — settings key/value store
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2 — users
	`CREATE TABLE IF NOT EXISTS users (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		username        TEXT NOT NULL UNIQUE,
		username_safe   TEXT NOT NULL UNIQUE,
		password_bcrypt TEXT NOT NULL,
		email           TEXT NOT NULL DEFAULT '',
		privileges      INTEGER NOT NULL DEFAULT 1,
		country         TEXT NOT NULL DEFAULT 'XX',
		is_bot          INTEGER NOT NULL DEFAULT 0,
		frozen_until    INTEGER NOT NULL DEFAULT 0,
		registered_at   INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — per-mode user stats
	`CREATE TABLE IF NOT EXISTS user_stats (
		user_id      INTEGER NOT NULL,
		mode         INTEGER NOT NULL,
		ranked_score INTEGER NOT NULL DEFAULT 0,
		total_score  INTEGER NOT NULL DEFAULT 0,
		playcount    INTEGER NOT NULL DEFAULT 0,
		accuracy     REAL NOT NULL DEFAULT 0,
		pp           INTEGER NOT NULL DEFAULT 0,
		rank_cached  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, mode)
	)`,
	// v4 — channels
	`CREATE TABLE IF NOT EXISTS channels (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL UNIQUE,
		description     TEXT NOT NULL DEFAULT '',
		public_read     INTEGER NOT NULL DEFAULT 1,
		public_write    INTEGER NOT NULL DEFAULT 1,
		hidden          INTEGER NOT NULL DEFAULT 0,
		auto_join       INTEGER NOT NULL DEFAULT 0,
		min_privileges  INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v5 — bans
	`CREATE TABLE IF NOT EXISTS bans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		banned_by  TEXT NOT NULL DEFAULT '',
		duration_s INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v6 — audit log
	`CREATE TABLE IF NOT EXISTS audit_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id     INTEGER NOT NULL,
		actor_name   TEXT NOT NULL,
		action       TEXT NOT NULL,
		target       TEXT NOT NULL DEFAULT '',
		details_json TEXT NOT NULL DEFAULT '{}',
		created_at   INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v7, v8 — ip / hardware history for multi-account detection
	`CREATE TABLE IF NOT EXISTS ip_history (
		user_id    INTEGER NOT NULL,
		ip         TEXT NOT NULL,
		first_seen INTEGER NOT NULL DEFAULT (unixepoch()),
		last_seen  INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (user_id, ip)
	)`,
	`CREATE TABLE IF NOT EXISTS hw_history (
		user_id     INTEGER NOT NULL,
		osu_version TEXT NOT NULL DEFAULT '',
		mac_hash    TEXT NOT NULL,
		unique_id   TEXT NOT NULL,
		disk_id     TEXT NOT NULL,
		first_seen  INTEGER NOT NULL DEFAULT (unixepoch()),
		last_seen   INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (user_id, mac_hash, unique_id, disk_id)
	)`,
	// v9–v11 — indexes for performance
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_hw_history_unique_id ON hw_history(unique_id)`,
	`CREATE INDEX IF NOT EXISTS idx_hw_history_disk_id ON hw_history(disk_id)`,
	// v12 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and exposes server-state operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[store] WAL mode: %v (non-fatal)", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema_migrations table (if absent) and applies
// any migrations whose version number exceeds the current maximum.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[store] applied migration v%d", v)
	}
	return nil
}

// GetSetting returns the value stored under key. The second return value
// is false when the key does not exist; an error is only returned for
// real I/O failures.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting upserts key → value in the settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetAllSettings returns all key/value pairs from the settings table.
func (s *Store) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Optimize runs PRAGMA optimize for SQLite query planner statistics.
func (s *Store) Optimize() error {
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}

// Backup creates a copy of the database at the given path using
// SQLite's backup API through VACUUM INTO.
func (s *Store) Backup(destPath string) error {
	_, err := s.db.Exec(`VACUUM INTO ?`, destPath)
	return err
}
