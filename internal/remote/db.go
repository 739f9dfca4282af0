// Package remote translates domain records to and from the hosted
// relational store and performs idempotent upsert/delete calls against it.
//
// The store is libSQL: a local embedded database file for development and
// tests, or a hosted Turso endpoint in production. Both modes speak
// database/sql; the driver is selected from the DSN once at open time.
//
// The remote store is a write-through mirror. It never holds authoritative
// state; the local store does.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the libSQL connection with schema management.
type DB struct {
	conn *sql.DB
	dsn  string
}

// Open connects to the remote store.
//
// A dsn starting with "libsql://", "https://", or "wss://" opens a hosted
// Turso endpoint. Anything else is treated as a local database file path,
// opened in embedded mode with WAL for concurrent reads.
//
// The caller MUST call Close when done.
func Open(dsn string) (*DB, error) {
	var (
		conn   *sql.DB
		err    error
		hosted = isHostedDSN(dsn)
	)

	if hosted {
		conn, err = sql.Open("libsql", dsn)
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		conn, err = sql.Open("sqlite3", fmt.Sprintf("file:%s", dsn))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, dsn: dsn}

	if !hosted {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.conn.Exec(pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
			}
		}
	}

	return db, nil
}

// DSN combines a remote URL and auth token into a connection string.
// The token is carried as the authToken query parameter, preserving any
// parameters already present on the URL. Local file paths and empty
// tokens pass through unchanged.
func DSN(rawURL, authToken string) (string, error) {
	if authToken == "" || !isHostedDSN(rawURL) {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL: %w", err)
	}
	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isHostedDSN(dsn string) bool {
	for _, prefix := range []string{"libsql://", "https://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the remote tables if they don't exist. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		preferences TEXT,  -- JSON object
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		document_content TEXT,
		document_type TEXT,
		learning_level TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		outline TEXT,  -- JSON chapter tree
		current_chapter TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		chapter_id TEXT,
		is_bookmarked INTEGER NOT NULL DEFAULT 0,
		card_id TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		message_id TEXT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		user_note TEXT,
		type TEXT NOT NULL,
		tags TEXT,  -- JSON array
		difficulty REAL NOT NULL DEFAULT 3,
		review_count INTEGER NOT NULL DEFAULT 0,
		last_reviewed_at TEXT,
		next_review_at TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_cards_user ON cards(user_id);
	CREATE INDEX IF NOT EXISTS idx_cards_session ON cards(session_id);
	CREATE INDEX IF NOT EXISTS idx_cards_next_review ON cards(user_id, next_review_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable RFC3339 string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable RFC3339 string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
