package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores computed weekly summaries for a short TTL so physician
// dashboards polling the same roster do not recompute aggregates on every
// request. A cache miss is nil, nil.
type Cache interface {
	Get(ctx context.Context, key string) (*WeeklySummary, error)
	Set(ctx context.Context, key string, summary *WeeklySummary) error
}

// RedisCache is a Redis implementation of Cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed summary cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get fetches a cached summary. Expired or absent keys miss silently.
func (c *RedisCache) Get(ctx context.Context, key string) (*WeeklySummary, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var summary WeeklySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return nil, nil
	}

	return &summary, nil
}

// Set stores a summary with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, summary *WeeklySummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// InMemoryCache is an in-memory implementation of Cache for testing.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
	ttl     time.Duration
}

type inMemoryEntry struct {
	summary   WeeklySummary
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory summary cache.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]inMemoryEntry),
		ttl:     ttl,
	}
}

// Get fetches a cached summary, honoring the TTL.
func (c *InMemoryCache) Get(_ context.Context, key string) (*WeeklySummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	cpy := entry.summary
	return &cpy, nil
}

// Set stores a summary with the configured TTL.
func (c *InMemoryCache) Set(_ context.Context, key string, summary *WeeklySummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = inMemoryEntry{
		summary:   *summary,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Ensure both caches implement Cache.
var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*InMemoryCache)(nil)
)
