// Package cache wraps Redis for read-through caching and receipt dedup. A nil
// *Cache or *Deduplicator is valid and turns every call into a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client and pings it.
func Connect(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl, prefix: "campaign-delivery:"}
}

func (c *Cache) key(k string) string { return c.prefix + k }

// GetJSON loads key into dest and reports whether it was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	if c == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.SetEx(ctx, c.key(key), data, c.ttl).Err()
}

// Incr bumps an integer counter that never expires and returns the new value.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	return c.client.Incr(ctx, c.key(key)).Result()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Deduplicator remembers (messageId, status) pairs for ttl.
type Deduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduplicator(client *redis.Client, ttl time.Duration) *Deduplicator {
	if client == nil {
		return nil
	}
	return &Deduplicator{client: client, ttl: ttl}
}

func ReceiptKey(messageID, status string) string {
	return fmt.Sprintf("receipt:%s:%s", messageID, status)
}

// IsDuplicate marks the receipt as seen and reports whether it already was.
func (d *Deduplicator) IsDuplicate(ctx context.Context, messageID, status string) (bool, error) {
	if d == nil {
		return false, nil
	}
	wasSet, err := d.client.SetNX(ctx, ReceiptKey(messageID, status), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !wasSet, nil
}

// Forget removes the mark, so a receipt that could not be queued is accepted on retry.
func (d *Deduplicator) Forget(ctx context.Context, messageID, status string) error {
	if d == nil {
		return nil
	}
	return d.client.Del(ctx, ReceiptKey(messageID, status)).Err()
}
