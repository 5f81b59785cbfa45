package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps transcripts in Redis lists, one list per session, with an
// optional TTL refreshed on every append.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // defaults to "ragchat:history:"
	TTL      time.Duration // 0 disables expiry
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("history: redis ping %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ragchat:history:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

func (s *RedisStore) key(actorID, sessionID string) string {
	return s.prefix + actorID + ":" + sessionID
}

func (s *RedisStore) Append(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("history: marshal turn: %w", err)
	}

	key := s.key(turn.ActorID, turn.SessionID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("history: rpush %s: %w", key, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("history: expire %s: %w", key, err)
		}
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, actorID, sessionID string, limit int) ([]Turn, error) {
	key := s.key(actorID, sessionID)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := s.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: lrange %s: %w", key, err)
	}

	out := make([]Turn, 0, len(items))
	for _, item := range items {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("history: unmarshal turn: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
