package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// RedisURL is optional: without it the server runs in-memory only
	// and loses the board on restart.
	RedisURL string `env:"REDIS_URL"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`
	SessionSweepEvery  time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"1m"`

	PersistQueueCap     int           `env:"PERSIST_QUEUE_CAP" default:"1000"`
	PersistBatchSize    int           `env:"PERSIST_BATCH_SIZE" default:"200"`
	PersistFlushEvery   time.Duration `env:"PERSIST_FLUSH_INTERVAL" default:"1s"`
	PersistDebounce     time.Duration `env:"PERSIST_DEBOUNCE_DELAY" default:"100ms"`
	PersistStoreTimeout time.Duration `env:"PERSIST_STORE_TIMEOUT" default:"2s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}
	if cfg.PersistQueueCap <= 0 {
		return fmt.Errorf("PERSIST_QUEUE_CAP must be positive, got %d", cfg.PersistQueueCap)
	}
	if cfg.PersistBatchSize <= 0 {
		return fmt.Errorf("PERSIST_BATCH_SIZE must be positive, got %d", cfg.PersistBatchSize)
	}
	if cfg.PersistBatchSize > cfg.PersistQueueCap {
		return fmt.Errorf("PERSIST_BATCH_SIZE (%d) must not exceed PERSIST_QUEUE_CAP (%d)",
			cfg.PersistBatchSize, cfg.PersistQueueCap)
	}
	for name, d := range map[string]time.Duration{
		"SESSION_IDLE_TIMEOUT":   cfg.SessionIdleTimeout,
		"SESSION_SWEEP_INTERVAL": cfg.SessionSweepEvery,
		"PERSIST_FLUSH_INTERVAL": cfg.PersistFlushEvery,
		"PERSIST_DEBOUNCE_DELAY": cfg.PersistDebounce,
		"PERSIST_STORE_TIMEOUT":  cfg.PersistStoreTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	return nil
}
