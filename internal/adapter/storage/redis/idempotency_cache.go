package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache remembers the first response to a top-up request so a
// retried Idempotency-Key can be answered without touching Postgres.
// Postgres stays the source of truth; a miss here only costs a query.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func replayKey(key string) string {
	return keyNamespace + "topup-replay:" + key
}

// Get returns the stored response, or nil when none is cached.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := c.client.Get(ctx, replayKey(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read cached top-up %q: %w", key, err)
	}
	return body, nil
}

// Set stores value unless a response is already cached for key.
// The first response wins, matching the database record.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.SetArgs(ctx, replayKey(key), value, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("cache top-up %q: %w", key, err)
	}
	return nil
}
