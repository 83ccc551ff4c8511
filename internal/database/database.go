package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the storage format for every timestamp column. Values are
// always written in UTC with a fixed-width fraction so lexical comparison in
// SQL matches time order to the nanosecond.
const timeLayout = "2006-01-02 15:04:05.000000000"

// parseLayout also accepts the second-precision values written by
// datetime('now') column defaults.
const parseLayout = "2006-01-02 15:04:05"

var ErrNotFound = errors.New("not found")

var timeNow = time.Now

type DB struct {
	conn *sql.DB
	path string
}

func New(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(2)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(parseLayout, s, time.UTC)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id                     TEXT PRIMARY KEY,
			url                    TEXT NOT NULL UNIQUE,
			title                  TEXT NOT NULL,
			image_url              TEXT NOT NULL DEFAULT '',
			source                 TEXT NOT NULL,
			published_at           TEXT NOT NULL,
			topic                  TEXT NOT NULL DEFAULT '',
			summary                TEXT NOT NULL,
			just_facts             TEXT NOT NULL,
			left_perspective       TEXT NOT NULL,
			right_perspective      TEXT NOT NULL,
			history_analysis       TEXT NOT NULL DEFAULT '',
			historical_comparisons TEXT NOT NULL DEFAULT '[]',
			factual_points         TEXT NOT NULL DEFAULT '[]',
			confidence             INTEGER NOT NULL,
			bias_label             TEXT NOT NULL,
			raw_description        TEXT NOT NULL DEFAULT '',
			created_at             TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_published_at ON stories(published_at)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id            TEXT PRIMARY KEY,
			status        TEXT NOT NULL,
			provider      TEXT NOT NULL,
			triggered_by  TEXT NOT NULL,
			actor_id      TEXT,
			started_at    TEXT NOT NULL,
			finished_at   TEXT,
			processed     INTEGER NOT NULL DEFAULT 0,
			created       INTEGER NOT NULL DEFAULT 0,
			skipped       INTEGER NOT NULL DEFAULT 0,
			error_message TEXT
		)`,
		// At most one run may be active at a time, across processes.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ingest_runs_one_running
			ON ingest_runs(status) WHERE status = 'running'`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
