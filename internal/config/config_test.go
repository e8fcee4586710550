package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 1000, cfg.PersistQueueCap)
	assert.Equal(t, 200, cfg.PersistBatchSize)
	assert.Equal(t, time.Second, cfg.PersistFlushEvery)
	assert.Equal(t, 100*time.Millisecond, cfg.PersistDebounce)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PERSIST_DEBOUNCE_DELAY", "250ms")
	t.Setenv("MAX_WEBSOCKET_CONNECTIONS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PersistDebounce)
	assert.Equal(t, 500, cfg.MaxWebSocketConnections)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envVar  string
		value   string
		wantErr string
	}{
		{"zero connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be positive"},
		{"negative queue cap", "PERSIST_QUEUE_CAP", "-1", "PERSIST_QUEUE_CAP must be positive"},
		{"zero batch size", "PERSIST_BATCH_SIZE", "0", "PERSIST_BATCH_SIZE must be positive"},
		{"zero debounce", "PERSIST_DEBOUNCE_DELAY", "0s", "PERSIST_DEBOUNCE_DELAY must be positive"},
		{"zero idle timeout", "SESSION_IDLE_TIMEOUT", "0s", "SESSION_IDLE_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_BatchLargerThanQueue(t *testing.T) {
	t.Setenv("PERSIST_QUEUE_CAP", "10")
	t.Setenv("PERSIST_BATCH_SIZE", "20")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed PERSIST_QUEUE_CAP")
}
