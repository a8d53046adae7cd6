package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps post windows in Redis, for setups where the cache should
// survive app restarts on another host or be shared between devices of one
// account.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

type redisEntry struct {
	CachedAt int64           `json:"cached_at"`
	Posts    []timeline.Post `json:"posts"`
}

func NewRedisStore(addr, password string, db int, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Debug("Connected to Redis cache", "addr", addr)
	return &RedisStore{client: client, retention: retention}, nil
}

func (s *RedisStore) key(key string) string {
	return "feedcache:" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]timeline.Post, error) {
	data, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	var entry redisEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		slog.Warn("Dropping corrupt cache entry", "key", key, "error", err)
		s.client.Del(ctx, s.key(key))
		return nil, nil
	}

	return entry.Posts, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, posts []timeline.Post) error {
	data, err := json.Marshal(redisEntry{
		CachedAt: time.Now().Unix(),
		Posts:    posts,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal posts for %s: %w", key, err)
	}

	if err := s.client.Set(ctx, s.key(key), data, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) IsValid(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache age for %s: %w", key, err)
	}

	var entry redisEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return false, nil
	}

	return time.Since(time.Unix(entry.CachedAt, 0)) < ttl, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
