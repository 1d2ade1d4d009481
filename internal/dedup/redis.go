package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "dedup"
	// pendingMarker is stored until the operation's response is recorded.
	pendingMarker = ""
)

// RedisStore shares the dedup window across server instances. Each
// signature is a string key holding the cached response, and a list keeps
// insertion order for FIFO eviction.
type RedisStore struct {
	redis    *redis.Client
	prefix   string
	capacity int
}

func NewRedisStore(client *redis.Client, prefix string, capacity int) *RedisStore {
	if client == nil {
		panic("dedup: redis client required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{redis: client, prefix: prefix, capacity: capacity}
}

func (s *RedisStore) key(sig string) string { return fmt.Sprintf("%s:sig:%s", s.prefix, sig) }
func (s *RedisStore) orderKey() string      { return s.prefix + ":order" }

func (s *RedisStore) Track(ctx context.Context, sig string) (bool, json.RawMessage, error) {
	added, err := s.redis.SetNX(ctx, s.key(sig), pendingMarker, 0).Result()
	if err != nil {
		return false, nil, fmt.Errorf("dedup: redis track: %w", err)
	}
	if !added {
		val, err := s.redis.Get(ctx, s.key(sig)).Result()
		if errors.Is(err, redis.Nil) {
			// Evicted between SETNX and GET; treat as seen without a response.
			return true, nil, nil
		}
		if err != nil {
			return false, nil, fmt.Errorf("dedup: redis read: %w", err)
		}
		if val == pendingMarker {
			return true, nil, nil
		}
		return true, json.RawMessage(val), nil
	}

	size, err := s.redis.LPush(ctx, s.orderKey(), sig).Result()
	if err != nil {
		return false, nil, fmt.Errorf("dedup: redis order: %w", err)
	}
	for ; size > int64(s.capacity); size-- {
		oldest, err := s.redis.RPop(ctx, s.orderKey()).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return false, nil, fmt.Errorf("dedup: redis evict: %w", err)
		}
		if err := s.redis.Del(ctx, s.key(oldest)).Err(); err != nil {
			return false, nil, fmt.Errorf("dedup: redis evict: %w", err)
		}
	}
	return false, nil, nil
}

func (s *RedisStore) Record(ctx context.Context, sig string, response json.RawMessage) error {
	if err := s.redis.SetXX(ctx, s.key(sig), []byte(response), 0).Err(); err != nil {
		return fmt.Errorf("dedup: redis record: %w", err)
	}
	return nil
}

func (s *RedisStore) Forget(ctx context.Context, sig string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key(sig))
	pipe.LRem(ctx, s.orderKey(), 0, sig)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dedup: redis forget: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.redis.LLen(ctx, s.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("dedup: redis len: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	sigs, err := s.redis.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("dedup: redis clear: %w", err)
	}
	keys := make([]string, 0, len(sigs)+1)
	for _, sig := range sigs {
		keys = append(keys, s.key(sig))
	}
	keys = append(keys, s.orderKey())
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("dedup: redis clear: %w", err)
	}
	return nil
}
