package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists turns in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns (actor_id, session_id, created_at);
`

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a volatile store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (actor_id, session_id, question, answer, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ActorID, turn.SessionID, turn.Question, turn.Answer, turn.Source, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, actorID, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT actor_id, session_id, question, answer, source, created_at
		 FROM (
			SELECT * FROM turns
			WHERE actor_id = ? AND session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		actorID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ActorID, &t.SessionID, &t.Question, &t.Answer, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate turns: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
