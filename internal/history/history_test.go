package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	turns := []Turn{
		{ActorID: "user-alice", SessionID: "s1", Question: "q1", Answer: "a1", Source: "documents", CreatedAt: base},
		{ActorID: "user-alice", SessionID: "s1", Question: "q2", Answer: "a2", Source: "websearch", CreatedAt: base.Add(time.Minute)},
		{ActorID: "user-alice", SessionID: "s2", Question: "other session", Answer: "x", Source: "memory", CreatedAt: base},
		{ActorID: "user-bob", SessionID: "s1", Question: "other actor", Answer: "y", Source: "memory", CreatedAt: base},
	}
	for _, turn := range turns {
		require.NoError(t, s.Append(ctx, turn))
	}

	t.Run("lists only the session, oldest first", func(t *testing.T) {
		got, err := s.List(ctx, "user-alice", "s1", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "q1", got[0].Question)
		assert.Equal(t, "q2", got[1].Question)
		assert.Equal(t, "websearch", got[1].Source)
	})

	t.Run("limit keeps the most recent turns", func(t *testing.T) {
		got, err := s.List(ctx, "user-alice", "s1", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "q2", got[0].Question)
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		got, err := s.List(ctx, "user-alice", "nope", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Turn{ActorID: "user-alice", SessionID: "s1", Question: "q", Answer: "a"}))

	mr.FastForward(2 * time.Minute)

	got, err := s.List(ctx, "user-alice", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreAssignsTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, Turn{ActorID: "a", SessionID: "s", Question: "q", Answer: "ans"}))
	got, err := s.List(ctx, "a", "s", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].CreatedAt.IsZero())
}
