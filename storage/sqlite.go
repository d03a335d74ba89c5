// Package storage persists session records. Each session is one JSON
// document replaced atomically on every mutation, so a crash mid-session
// leaves the last fully-written snapshot rather than a corrupt partial
// record.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourusername/queryweaver/models"
)

// SessionStore is a SQLite-backed store of one JSON document per session
type SessionStore struct {
	db            *sql.DB
	path          string
	schemaVersion string
	maxRetries    int
	retryBackoff  time.Duration
}

// SessionSummary is the listing view of a stored session
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	UserQuestion string    `json:"user_question"`
	State        string    `json:"state"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSessionStore opens (creating if needed) the session database.
// schemaVersion selects the document format for writes; both versions
// are always readable.
func NewSessionStore(dbPath, schemaVersion string) (*SessionStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SessionStore{
		db:            db,
		path:          dbPath,
		schemaVersion: schemaVersion,
		maxRetries:    3,
		retryBackoff:  100 * time.Millisecond,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the sessions table
func (s *SessionStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        question TEXT NOT NULL,
        state TEXT NOT NULL,
        data TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
    `

	_, err := s.db.Exec(schema)
	return err
}

// Save writes the session's full document as a single atomic replace.
// Transient write failures are retried with backoff a bounded number of
// times; if all attempts fail the error wraps ErrPersistenceWrite. The
// in-memory session is intact, only its durability is at risk.
func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	data, err := session.MarshalDocument(s.schemaVersion)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `INSERT OR REPLACE INTO sessions (id, question, state, data, updated_at)
	          VALUES (?, ?, ?, ?, ?)`

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrPersistenceWrite, ctx.Err())
			case <-time.After(s.retryBackoff * time.Duration(attempt)):
			}
		}

		_, lastErr = s.db.ExecContext(ctx, query,
			session.SessionID, session.UserQuestion, string(session.State),
			string(data), session.LastUpdateTime.UTC())
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %v", models.ErrPersistenceWrite, lastErr)
}

// Load restores a session by id
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, err
	}

	return models.UnmarshalDocument([]byte(data))
}

// List returns summaries of the most recently updated sessions
func (s *SessionStore) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, state, updated_at FROM sessions
		 ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var summary SessionSummary
		if err := rows.Scan(&summary.SessionID, &summary.UserQuestion,
			&summary.State, &summary.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// DeleteOlderThan removes sessions not updated within the retention
// window. Retention is an external policy decision; sessions are never
// deleted implicitly.
func (s *SessionStore) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *SessionStore) Close() error {
	return s.db.Close()
}
