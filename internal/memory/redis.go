package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps conversations in Redis lists, one list per key. Redis
// executes commands for a single key serially, which gives the per-key
// ordering guarantee the Store contract requires.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store. A non-zero ttl re-arms key
// expiry on every append; zero keeps conversations until Evict.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the turns recorded for key, oldest first.
func (s *RedisStore) Get(ctx context.Context, key Key) ([]Turn, error) {
	items, err := s.client.LRange(ctx, key.String(), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.Warn("skipping malformed turn record",
				zap.String("key", key.String()),
				zap.Error(err),
			)
			continue
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

// Append records turns at the end of the conversation for key.
func (s *RedisStore) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, string(data))
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key.String(), values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key.String(), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}

	return nil
}

// Evict deletes the conversation for key.
func (s *RedisStore) Evict(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("failed to evict conversation: %w", err)
	}
	return nil
}
