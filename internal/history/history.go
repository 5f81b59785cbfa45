// Package history persists per-session chat transcripts. It backs the
// /history endpoint and stands in for the managed memory service when none
// is configured. Backends mirror the deployment shapes the service runs in:
// in-memory for tests, SQLite for single-node, Redis for shared.
package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	ActorID   string    `json:"actor_id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Source    string    `json:"source"` // memory | documents | websearch
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and lists turns.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	// List returns the most recent turns for a session, oldest first.
	List(ctx context.Context, actorID, sessionID string, limit int) ([]Turn, error)
	Close() error
}

// MemoryStore keeps turns in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []Turn
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns = append(s.turns, turn)
	return nil
}

func (s *MemoryStore) List(_ context.Context, actorID, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Turn
	for _, t := range s.turns {
		if t.ActorID == actorID && t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
