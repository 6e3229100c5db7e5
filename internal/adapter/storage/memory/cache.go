package memory

import (
	"context"
	"sync"
	"time"
)

// Cache implements ports.IdempotencyCache and ports.LeaseLock in process,
// for single-instance deployments without Redis.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	owner     string
	expiresAt time.Time
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live("idempotency:" + key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

// Set keeps the first unexpired value for key.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live("idempotency:" + key); ok {
		return nil
	}
	c.entries["idempotency:"+key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *Cache) Acquire(_ context.Context, name string, owner string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := "lease:" + name
	if _, held := c.live(key); held {
		return false, nil
	}
	c.entries[key] = cacheEntry{owner: owner, expiresAt: c.now().Add(ttl)}
	return true, nil
}

func (c *Cache) Release(_ context.Context, name string, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := "lease:" + name
	if e, ok := c.live(key); ok && e.owner == owner {
		delete(c.entries, key)
	}
	return nil
}

// live returns the entry if present and unexpired. Callers hold c.mu.
func (c *Cache) live(key string) (cacheEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if !e.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return e, true
}
