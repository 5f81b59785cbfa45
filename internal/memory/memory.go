// Package memory recalls and records conversation context. The AgentCore
// implementation talks to the managed Bedrock AgentCore memory service; the
// local implementation reuses the history store for deployments without one.
package memory

import (
	"context"
	"time"
)

// Event is one remembered message.
type Event struct {
	Role      string // USER or ASSISTANT
	Text      string
	Timestamp time.Time
}

// Message is one side of a turn to be recorded.
type Message struct {
	Role string
	Text string
}

// Recaller reads and writes conversation memory for an actor/session pair.
type Recaller interface {
	// Recall returns up to limit recent events, oldest first.
	Recall(ctx context.Context, actorID, sessionID string, limit int) ([]Event, error)
	// Record appends a completed exchange.
	Record(ctx context.Context, actorID, sessionID string, messages []Message) error
}
