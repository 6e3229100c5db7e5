package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// windowScript counts a hit and starts the window on the first one, in a
// single round trip. It returns the count and the window's remaining ms.
var windowScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RateLimitStore keeps per-caller request counters. A window opens on the
// caller's first request and lasts for the configured duration.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// RateLimitResult is the outcome of one Allow call.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // unix seconds
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	res, err := windowScript.Run(ctx, s.client, []string{keyNamespace + "ratelimit:" + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("count request for %q: %w", key, err)
	}
	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}

	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   s.now().Add(ttl).Unix(),
	}, nil
}
