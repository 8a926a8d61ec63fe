package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Relay.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(64*1024), cfg.WebSocket.ReadLimit)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "GORM")
	t.Setenv("RELAY_REDIS_ADDRESS", "redis:6380")
	t.Setenv("RATELIMIT_BURST", "7")
	t.Setenv("SERVER_ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gorm", cfg.Store.Driver)
	assert.Equal(t, "redis:6380", cfg.Relay.Redis.Address)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsMemoryStoreOutsideDevelopment(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "development only")

	t.Setenv("STORE_DRIVER", "gorm")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gorm", cfg.Store.Driver)
}
