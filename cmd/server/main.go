package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/noteboard/noteboard/internal/config"
	"github.com/noteboard/noteboard/internal/hub"
	"github.com/noteboard/noteboard/internal/logging"
	"github.com/noteboard/noteboard/internal/notes"
	"github.com/noteboard/noteboard/internal/persist"
	"github.com/noteboard/noteboard/internal/server"
	"github.com/noteboard/noteboard/internal/storage"
	"github.com/noteboard/noteboard/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStorage connects to Redis when REDIS_URL is set. Without it the
// board runs purely in memory and is lost on restart.
func setupStorage(cfg *config.Config) storage.Store {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, notes will not survive restarts")
		return storage.NoopStore{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return store
}

func seedBoard(store storage.Store) *notes.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	board, err := storage.LoadBoard(ctx, store)
	if err != nil {
		slog.Error("Failed to load board, starting empty", "error", err)
		board = nil
	}

	noteStore := notes.NewStore()
	noteStore.Seed(board)
	slog.Info("Board loaded", "notes", noteStore.Len())
	return noteStore
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, batcher *persist.Batcher, store storage.Store) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop the hub before the batcher so its final enqueues still
		// land in the flush.
		h.Stop()
		batcher.Stop()

		if closer, ok := store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				slog.Error("Failed to close storage", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port,
		"version", build.Version, "commit", build.Commit)

	store := setupStorage(cfg)
	noteStore := seedBoard(store)

	batcher := persist.NewBatcher(store, clock, persist.Options{
		QueueCap:      cfg.PersistQueueCap,
		BatchSize:     cfg.PersistBatchSize,
		FlushInterval: cfg.PersistFlushEvery,
		DebounceDelay: cfg.PersistDebounce,
		StoreTimeout:  cfg.PersistStoreTimeout,
	})

	h := hub.New(noteStore, batcher, clock, hub.Options{
		IdleTimeout:   cfg.SessionIdleTimeout,
		SweepInterval: cfg.SessionSweepEvery,
	})

	srv := server.NewServer(cfg, h, store)

	done := runGracefulShutdown(srv, h, batcher, store)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
