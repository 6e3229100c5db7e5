// Package redis holds the Redis-backed caches, leases and rate-limit
// counters. Every key lives under the "avg:" namespace.
package redis

import (
	"context"
	"fmt"

	"age-verification-gateway/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyNamespace = "avg:"

// NewClient dials Redis with the configured pool and timeouts and fails fast
// if the server does not answer PING.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	log.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Int("pool_size", client.Options().PoolSize).
		Msg("Redis ready")

	return client, nil
}
