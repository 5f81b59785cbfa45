package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/history"
)

type fakeAgentCore struct {
	listOut   *bedrockagentcore.ListEventsOutput
	listErr   error
	lastList  *bedrockagentcore.ListEventsInput
	created   []*bedrockagentcore.CreateEventInput
	createErr error
}

func (f *fakeAgentCore) ListEvents(_ context.Context, in *bedrockagentcore.ListEventsInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error) {
	f.lastList = in
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listOut == nil {
		return &bedrockagentcore.ListEventsOutput{}, nil
	}
	return f.listOut, nil
}

func (f *fakeAgentCore) CreateEvent(_ context.Context, in *bedrockagentcore.CreateEventInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &bedrockagentcore.CreateEventOutput{}, nil
}

func conversationalEvent(role types.Role, text string, ts time.Time) types.Event {
	return types.Event{
		EventTimestamp: aws.Time(ts),
		Payload: []types.PayloadType{
			&types.PayloadTypeMemberConversational{
				Value: types.Conversational{
					Content: &types.ContentMemberText{Value: text},
					Role:    role,
				},
			},
		},
	}
}

func TestAgentCoreRecall(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAgentCore{
		listOut: &bedrockagentcore.ListEventsOutput{
			Events: []types.Event{
				conversationalEvent(types.RoleAssistant, "second answer", base.Add(time.Minute)),
				conversationalEvent(types.RoleUser, "first question", base),
			},
		},
	}
	mem, err := NewAgentCoreMemory(api, "mem-123")
	require.NoError(t, err)

	events, err := mem.Recall(context.Background(), "user-alice", "session-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "first question", events[0].Text)
	assert.Equal(t, "USER", events[0].Role)
	assert.Equal(t, "second answer", events[1].Text)
	assert.Equal(t, "ASSISTANT", events[1].Role)

	require.NotNil(t, api.lastList)
	assert.Equal(t, "mem-123", aws.ToString(api.lastList.MemoryId))
	assert.Equal(t, "user-alice", aws.ToString(api.lastList.ActorId))
	assert.Equal(t, int32(10), aws.ToInt32(api.lastList.MaxResults))
}

func TestAgentCoreRecallDefaultsLimit(t *testing.T) {
	api := &fakeAgentCore{}
	mem, err := NewAgentCoreMemory(api, "mem-123")
	require.NoError(t, err)

	_, err = mem.Recall(context.Background(), "a", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), aws.ToInt32(api.lastList.MaxResults))
}

func TestAgentCoreRecallError(t *testing.T) {
	api := &fakeAgentCore{listErr: errors.New("throttled")}
	mem, err := NewAgentCoreMemory(api, "mem-123")
	require.NoError(t, err)

	_, err = mem.Recall(context.Background(), "a", "s", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list events")
}

func TestAgentCoreRecord(t *testing.T) {
	api := &fakeAgentCore{}
	mem, err := NewAgentCoreMemory(api, "mem-123")
	require.NoError(t, err)

	err = mem.Record(context.Background(), "user-alice", "session-1", []Message{
		{Role: "USER", Text: "what is rag?"},
		{Role: "ASSISTANT", Text: "retrieval augmented generation"},
	})
	require.NoError(t, err)

	require.Len(t, api.created, 1)
	in := api.created[0]
	assert.Equal(t, "mem-123", aws.ToString(in.MemoryId))
	assert.NotNil(t, in.EventTimestamp)
	require.Len(t, in.Payload, 2)

	first, ok := in.Payload[0].(*types.PayloadTypeMemberConversational)
	require.True(t, ok)
	assert.Equal(t, types.RoleUser, first.Value.Role)
	text, ok := first.Value.Content.(*types.ContentMemberText)
	require.True(t, ok)
	assert.Equal(t, "what is rag?", text.Value)
}

func TestAgentCoreRecordEmptyIsNoop(t *testing.T) {
	api := &fakeAgentCore{}
	mem, err := NewAgentCoreMemory(api, "mem-123")
	require.NoError(t, err)

	require.NoError(t, mem.Record(context.Background(), "a", "s", nil))
	assert.Empty(t, api.created)
}

func TestNewAgentCoreMemoryValidation(t *testing.T) {
	_, err := NewAgentCoreMemory(nil, "mem-123")
	assert.Error(t, err)

	_, err = NewAgentCoreMemory(&fakeAgentCore{}, "  ")
	assert.Error(t, err)
}

func TestLocalMemoryRoundTrip(t *testing.T) {
	mem, err := NewLocalMemory(history.NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mem.Record(ctx, "user-alice", "s1", []Message{
		{Role: "USER", Text: "q1"},
		{Role: "ASSISTANT", Text: "a1"},
	}))
	require.NoError(t, mem.Record(ctx, "user-alice", "s1", []Message{
		{Role: "USER", Text: "q2"},
		{Role: "ASSISTANT", Text: "a2"},
	}))

	events, err := mem.Recall(ctx, "user-alice", "s1", 10)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "USER", events[0].Role)
	assert.Equal(t, "q1", events[0].Text)
	assert.Equal(t, "ASSISTANT", events[3].Role)
	assert.Equal(t, "a2", events[3].Text)
}

func TestLocalMemoryRecallLimit(t *testing.T) {
	mem, err := NewLocalMemory(history.NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	for _, qa := range [][2]string{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}} {
		require.NoError(t, mem.Record(ctx, "a", "s", []Message{
			{Role: "USER", Text: qa[0]},
			{Role: "ASSISTANT", Text: qa[1]},
		}))
	}

	events, err := mem.Recall(ctx, "a", "s", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "a2", events[0].Text)
	assert.Equal(t, "q3", events[1].Text)
	assert.Equal(t, "a3", events[2].Text)
}
