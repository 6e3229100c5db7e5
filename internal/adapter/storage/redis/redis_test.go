package redis

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"age-verification-gateway/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, s *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	host, port, ok := strings.Cut(s.Addr(), ":")
	require.True(t, ok)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.RedisConfig{Host: host, Port: p}
}

func TestNewClient_Connects(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), redisConfigFor(t, s), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, NewHealthCheck(client).Ping(context.Background()))
	assert.Equal(t, "redis", NewHealthCheck(client).Name())
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "pinging redis")
}
