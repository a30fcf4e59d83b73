package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

const (
	keyPrefix     = "quadro:tasks:"
	generationKey = keyPrefix + "gen"
)

// Cache wraps a persistence collaborator with a Redis read-through cache for
// LoadTasks. Every write bumps a generation counter, orphaning older entries.
type Cache struct {
	base  app.Persistence
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client or zero TTL disables caching.
func NewCache(base app.Persistence, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("rediscache.NewCache: base persistence is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

// Ping reports whether Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *Cache) LoadTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	key, ok := c.tasksKey(ctx, filter)
	if ok {
		if tasks, hit := c.loadTasksFromCache(ctx, key); hit {
			return tasks, nil
		}
	}

	tasks, err := c.base.LoadTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if ok {
		c.storeTasks(ctx, key, tasks)
	}
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.CreateTask(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) MoveTasks(ctx context.Context, taskID string, changed []domain.Task) error {
	if err := c.base.MoveTasks(ctx, taskID, changed); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) ReplaceTasks(ctx context.Context, tasks []domain.Task) error {
	if err := c.base.ReplaceTasks(ctx, tasks); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// ListChangeEvents is never cached.
func (c *Cache) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	return c.base.ListChangeEvents(ctx, limit)
}

// tasksKey returns the cache key for filter at the current generation. It
// reports false when caching is off or Redis is unreachable.
func (c *Cache) tasksKey(ctx context.Context, filter app.TaskFilter) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return "", false
	}
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + string(filterJSON), true
}

func (c *Cache) loadTasksFromCache(ctx context.Context, key string) ([]domain.Task, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, key string, tasks []domain.Task) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Incr(ctx, generationKey).Err()
}
