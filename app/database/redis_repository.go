package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repository = (*RedisRepository)(nil)

const (
	sentArticlesKey = "sent_articles"
	feedStateKey    = "feed_state"
)

// RedisRepository keeps the sent record as a list and feed state as a hash
// of feed id to JSON-encoded FeedState.
type RedisRepository struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

func NewRedisRepository(addr string, prefix string) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &RedisRepository{
		client: client,
		prefix: prefix,
		ctx:    ctx,
	}, nil
}

func (r *RedisRepository) key(name string) string {
	return r.prefix + ":" + name
}

func (r *RedisRepository) LoadSentArticles() ([]string, error) {
	ids, err := r.client.LRange(r.ctx, r.key(sentArticlesKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sent articles: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// SaveSentArticles replaces the list inside MULTI so readers never observe
// a partially written record.
func (r *RedisRepository) SaveSentArticles(ids []string) error {
	key := r.key(sentArticlesKey)

	_, err := r.client.TxPipelined(r.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(r.ctx, key)
		if len(ids) > 0 {
			values := make([]any, len(ids))
			for i, id := range ids {
				values[i] = id
			}
			pipe.RPush(r.ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save sent articles: %w", err)
	}

	return nil
}

func (r *RedisRepository) LoadFeedStates() (map[string]FeedState, error) {
	raw, err := r.client.HGetAll(r.ctx, r.key(feedStateKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load feed state: %w", err)
	}

	states := make(map[string]FeedState, len(raw))
	for feedID, value := range raw {
		var state FeedState
		if err := json.Unmarshal([]byte(value), &state); err != nil {
			slog.Warn("Skipping invalid feed state", "feed_id", feedID, "error", err)
			continue
		}
		states[feedID] = state
	}

	return states, nil
}

func (r *RedisRepository) SaveFeedStates(states map[string]FeedState) error {
	key := r.key(feedStateKey)

	values := make(map[string]any, len(states))
	for feedID, state := range states {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode feed state %s: %w", feedID, err)
		}
		values[feedID] = string(data)
	}

	_, err := r.client.TxPipelined(r.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(r.ctx, key)
		if len(values) > 0 {
			pipe.HSet(r.ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save feed state: %w", err)
	}

	return nil
}

// Health pings the server.
func (r *RedisRepository) Health() error {
	return r.client.Ping(r.ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
