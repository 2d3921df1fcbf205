// Package store persists completed-turn conversation histories in SQLite.
// Only fully recorded turns are saved; a crash mid-turn loses at most the
// turn in flight.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/kepvey/drover/pkg/genai"
)

// ErrNotFound indicates no transcript exists for the session.
var ErrNotFound = errors.New("transcript not found")

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	SessionID string
	Snapshots int
	UpdatedAt time.Time
}

// TranscriptStore saves and loads per-session history snapshots.
type TranscriptStore struct {
	db *sql.DB
}

// Open opens (and migrates) the store at path. ":memory:" gives an ephemeral
// store.
func Open(path string) (*TranscriptStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}

	s := &TranscriptStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TranscriptStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			history TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create transcripts table: %w", err)
	}
	_, err = s.db.Exec("CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, created_at)")
	if err != nil {
		return fmt.Errorf("create transcript index: %w", err)
	}
	return nil
}

// Save persists one completed-turn history snapshot for the session.
func (s *TranscriptStore) Save(ctx context.Context, sessionID string, history []genai.Content) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO transcripts (id, session_id, history, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), sessionID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Load returns the most recent history snapshot for the session.
func (s *TranscriptStore) Load(ctx context.Context, sessionID string) ([]genai.Content, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT history FROM transcripts WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	var history []genai.Content
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("decode transcript for %s: %w", sessionID, err)
	}
	return history, nil
}

// List returns a summary of every stored session, most recently updated
// first.
func (s *TranscriptStore) List(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM transcripts
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		// MAX(created_at) is an expression, so the driver loses the
		// column's DATETIME decl type and returns the stored text
		// verbatim; parse it with the driver's default write layout.
		var updated string
		if err := rows.Scan(&info.SessionID, &info.Snapshots, &updated); err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", updated)
		if err != nil {
			return nil, fmt.Errorf("parse transcript timestamp: %w", err)
		}
		info.UpdatedAt = t
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}
