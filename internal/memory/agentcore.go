package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
)

// agentCoreAPI is the minimal AgentCore data-plane interface required by
// AgentCoreMemory. Defined here for testability.
type agentCoreAPI interface {
	ListEvents(ctx context.Context, in *bedrockagentcore.ListEventsInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error)
	CreateEvent(ctx context.Context, in *bedrockagentcore.CreateEventInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error)
}

// AgentCoreMemory stores conversation turns in a Bedrock AgentCore memory
// resource.
type AgentCoreMemory struct {
	api      agentCoreAPI
	memoryID string
}

var _ Recaller = (*AgentCoreMemory)(nil)

// NewAgentCoreMemory wraps an AgentCore client for the given memory
// resource ID.
func NewAgentCoreMemory(api agentCoreAPI, memoryID string) (*AgentCoreMemory, error) {
	if api == nil {
		return nil, fmt.Errorf("memory: agentcore api must not be nil")
	}
	if strings.TrimSpace(memoryID) == "" {
		return nil, fmt.Errorf("memory: memory id must not be empty")
	}
	return &AgentCoreMemory{api: api, memoryID: memoryID}, nil
}

// Recall lists recent events for the session, oldest first.
func (m *AgentCoreMemory) Recall(ctx context.Context, actorID, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}

	out, err := m.api.ListEvents(ctx, &bedrockagentcore.ListEventsInput{
		MemoryId:   aws.String(m.memoryID),
		ActorId:    aws.String(actorID),
		SessionId:  aws.String(sessionID),
		MaxResults: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("memory: list events: %w", err)
	}

	var events []Event
	for _, ev := range out.Events {
		ts := time.Time{}
		if ev.EventTimestamp != nil {
			ts = *ev.EventTimestamp
		}
		for _, payload := range ev.Payload {
			conv, ok := payload.(*types.PayloadTypeMemberConversational)
			if !ok {
				continue
			}
			text, ok := conv.Value.Content.(*types.ContentMemberText)
			if !ok {
				continue
			}
			events = append(events, Event{
				Role:      string(conv.Value.Role),
				Text:      text.Value,
				Timestamp: ts,
			})
		}
	}

	// The service returns newest first; callers want chronological order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Record appends the messages of one exchange as a single event.
func (m *AgentCoreMemory) Record(ctx context.Context, actorID, sessionID string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	payload := make([]types.PayloadType, 0, len(messages))
	for _, msg := range messages {
		role := types.Role(strings.ToUpper(msg.Role))
		payload = append(payload, &types.PayloadTypeMemberConversational{
			Value: types.Conversational{
				Content: &types.ContentMemberText{Value: msg.Text},
				Role:    role,
			},
		})
	}

	_, err := m.api.CreateEvent(ctx, &bedrockagentcore.CreateEventInput{
		MemoryId:       aws.String(m.memoryID),
		ActorId:        aws.String(actorID),
		SessionId:      aws.String(sessionID),
		EventTimestamp: aws.Time(time.Now().UTC()),
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("memory: create event: %w", err)
	}
	return nil
}
