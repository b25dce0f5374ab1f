package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_ConnectsAndAppliesConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := DefaultRedisConfig()
	cfg.Host = mr.Host()
	cfg.Port = port

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, cfg.DialTimeout, opts.DialTimeout)
	assert.Equal(t, cfg.ReadTimeout, opts.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, opts.WriteTimeout)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
	assert.Equal(t, cfg.MinIdleConns, opts.MinIdleConns)

	require.NoError(t, client.Set(context.Background(), "warmup-key", "1", time.Minute).Err())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond

	client, err := NewRedisClient(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
}
