package memory

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/history"
)

// LocalMemory adapts a history store as a memory backend for deployments
// without an AgentCore memory resource.
type LocalMemory struct {
	store history.Store
}

var _ Recaller = (*LocalMemory)(nil)

// NewLocalMemory wraps a history store.
func NewLocalMemory(store history.Store) (*LocalMemory, error) {
	if store == nil {
		return nil, fmt.Errorf("memory: history store must not be nil")
	}
	return &LocalMemory{store: store}, nil
}

// Recall converts recorded turns back into alternating USER/ASSISTANT
// events. limit counts events, so each turn yields up to two of them.
func (m *LocalMemory) Recall(ctx context.Context, actorID, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	turnLimit := (limit + 1) / 2

	turns, err := m.store.List(ctx, actorID, sessionID, turnLimit)
	if err != nil {
		return nil, fmt.Errorf("memory: list history: %w", err)
	}

	events := make([]Event, 0, 2*len(turns))
	for _, turn := range turns {
		events = append(events,
			Event{Role: "USER", Text: turn.Question, Timestamp: turn.CreatedAt},
			Event{Role: "ASSISTANT", Text: turn.Answer, Timestamp: turn.CreatedAt},
		)
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Record pairs user and assistant messages into turns and appends them.
func (m *LocalMemory) Record(ctx context.Context, actorID, sessionID string, messages []Message) error {
	var question string
	for _, msg := range messages {
		switch strings.ToUpper(msg.Role) {
		case "USER":
			question = msg.Text
		case "ASSISTANT":
			err := m.store.Append(ctx, history.Turn{
				ActorID:   actorID,
				SessionID: sessionID,
				Question:  question,
				Answer:    msg.Text,
			})
			if err != nil {
				return fmt.Errorf("memory: append history: %w", err)
			}
			question = ""
		}
	}
	return nil
}
