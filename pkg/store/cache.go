package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaskCache is a Redis cache-aside layer in front of PostgresStore.GetTask,
// the highest-QPS endpoint behind /api/tasks/{id}.
type TaskCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTaskCache connects to addr and verifies reachability with a ping.
func NewTaskCache(addr string, ttl time.Duration, logger *slog.Logger) (*TaskCache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &TaskCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *TaskCache) Close() error {
	return c.client.Close()
}

func cacheKey(taskID string) string {
	return "task:" + taskID
}

// Get returns the cached task, or nil on a cache miss or cache error — a
// miss here always falls through to the database, never fails the request.
func (c *TaskCache) Get(ctx context.Context, taskID string) *Task {
	data, err := c.client.Get(ctx, cacheKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("cache get failed", slog.String("task_id", taskID), slog.Any("error", err))
		return nil
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		c.logger.Warn("cache decode failed", slog.String("task_id", taskID), slog.Any("error", err))
		return nil
	}
	return &t
}

// Set populates the cache; failures are logged and otherwise ignored.
func (c *TaskCache) Set(ctx context.Context, t *Task) {
	data, err := json.Marshal(t)
	if err != nil {
		c.logger.Warn("cache encode failed", slog.String("task_id", t.ID), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(t.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", slog.String("task_id", t.ID), slog.Any("error", err))
	}
}

// Invalidate drops the cached entry; called after every task write so a
// stale value is never served.
func (c *TaskCache) Invalidate(ctx context.Context, taskID string) {
	if err := c.client.Del(ctx, cacheKey(taskID)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", slog.String("task_id", taskID), slog.Any("error", err))
	}
}

// Healthy reports whether Redis answered the last ping, used by /api/health
// to report the cache as degraded rather than failing the whole process.
func (c *TaskCache) Healthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// CachedStore wraps PostgresStore with the cache-aside pattern for GetTask;
// every write goes straight to PostgresStore and then invalidates the
// cache entry.
type CachedStore struct {
	*PostgresStore
	cache *TaskCache
}

// NewCachedStore composes a PostgresStore with a TaskCache.
func NewCachedStore(store *PostgresStore, cache *TaskCache) *CachedStore {
	return &CachedStore{PostgresStore: store, cache: cache}
}

// HealthStatus reports the reachability of both the relational store and
// the cache, so /api/health can report the cache as merely degraded.
type HealthStatus struct {
	DatabaseOK bool
	CacheOK    bool
}

func (s *CachedStore) Health(ctx context.Context) HealthStatus {
	return HealthStatus{
		DatabaseOK: s.PostgresStore.Healthy(ctx),
		CacheOK:    s.cache.Healthy(ctx),
	}
}

func (s *CachedStore) GetTask(ctx context.Context, id string) (*Task, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}

	t, err := s.PostgresStore.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, t)
	return t, nil
}

func (s *CachedStore) UpdateTaskStatus(ctx context.Context, id, status string, column string, payload interface{}) error {
	if err := s.PostgresStore.UpdateTaskStatus(ctx, id, status, column, payload); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}
