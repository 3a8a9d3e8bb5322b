package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

// Advisory kinds, used as key namespaces.
const (
	KindWeekly  = "weekly"
	KindTonight = "tonight"
)

// Entry is one cached advisory.
type Entry struct {
	Location  string    `json:"location"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache wraps a Redis client and stores rendered advisories for a short TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to 10 minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func prefix(kind string) string {
	return "advisory:" + kind + ":"
}

// key returns the Redis key for an advisory of the given kind.
func key(kind, name string) string {
	return prefix(kind) + strings.ToLower(strings.TrimSpace(name))
}

// Get retrieves a cached advisory.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, kind, name string) (*Entry, error) {
	val, err := c.client.Get(ctx, key(kind, name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s %s: %w", kind, name, err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, fmt.Errorf("unmarshaling cached advisory for %s %s: %w", kind, name, err)
	}

	return &e, nil
}

// Set stores an advisory with the configured TTL.
func (c *Cache) Set(ctx context.Context, kind, name string, e *Entry) error {
	if e == nil {
		return nil
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling advisory for %s %s: %w", kind, name, err)
	}

	if err := c.client.Set(ctx, key(kind, name), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s %s: %w", kind, name, err)
	}

	return nil
}

// Delete removes one cached advisory.
func (c *Cache) Delete(ctx context.Context, kind, name string) error {
	if err := c.client.Del(ctx, key(kind, name)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s %s: %w", kind, name, err)
	}
	return nil
}

// Purge removes every cached advisory of one kind.
func (c *Cache) Purge(ctx context.Context, kind string) error {
	iter := c.client.Scan(ctx, 0, prefix(kind)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning %s advisories: %w", kind, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("purging %s advisories: %w", kind, err)
	}
	return nil
}

// NopCache satisfies the same method set without storing anything. It is
// used when no Redis URL is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string) (*Entry, error) { return nil, nil }
func (NopCache) Set(context.Context, string, string, *Entry) error   { return nil }
func (NopCache) Delete(context.Context, string, string) error        { return nil }
func (NopCache) Purge(context.Context, string) error                 { return nil }
