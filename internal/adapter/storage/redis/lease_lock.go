package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only while it still belongs to the caller.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseLock implements ports.LeaseLock using Redis SET NX with a TTL.
type LeaseLock struct {
	client *goredis.Client
	prefix string
}

// NewLeaseLock creates a new Redis-backed lease lock.
func NewLeaseLock(client *goredis.Client) *LeaseLock {
	return &LeaseLock{
		client: client,
		prefix: keyNamespace + "lease:",
	}
}

// Acquire returns true if owner now holds the named lease.
// An expired lease can be taken by anyone.
func (l *LeaseLock) Acquire(ctx context.Context, name string, owner string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.prefix+name, owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lease acquire: %w", err)
	}
	return result == "OK", nil
}

// Release drops the lease if owner still holds it.
func (l *LeaseLock) Release(ctx context.Context, name string, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, owner).Err(); err != nil {
		return fmt.Errorf("redis lease release: %w", err)
	}
	return nil
}
