// Package bootstrap selects the record store once at startup. When the
// configured durable backend cannot be reached within the probe timeout the
// process runs on the in-memory store for its whole lifetime.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"hemalink/internal/platform/config"
	"hemalink/internal/platform/postgres"
	platformredis "hemalink/internal/platform/redis"
	"hemalink/internal/storage"
	"hemalink/internal/storage/memory"
	pgstore "hemalink/internal/storage/postgres"
	redisstore "hemalink/internal/storage/redis"
)

// Selection reports which backend the process ended up with.
type Selection struct {
	Backend   storage.Backend
	Requested string
	// Degraded is set when Requested could not be used and memory took over.
	Degraded bool
}

// Open builds the configured backend and health-checks it once. It never
// fails: any construction or probe error degrades to memory with a warning.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) *Selection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	requested := cfg.Storage.Backend
	if requested == "" {
		requested = config.BackendMemory
	}
	if requested == config.BackendMemory {
		logger.Info("record store selected", "backend", config.BackendMemory)
		return &Selection{Backend: newMemory(cfg), Requested: requested}
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Storage.ProbeTimeout)
	defer cancel()

	backend, err := openDurable(probeCtx, requested, cfg)
	if err == nil {
		if err = backend.Health(probeCtx); err != nil {
			_ = backend.Close()
		}
	}
	if err != nil {
		logger.Warn("durable record store unavailable, falling back to memory",
			"requested", requested,
			"error", err,
		)
		return &Selection{Backend: newMemory(cfg), Requested: requested, Degraded: true}
	}

	logger.Info("record store selected", "backend", backend.Name())
	return &Selection{Backend: backend, Requested: requested}
}

func openDurable(ctx context.Context, name string, cfg config.Config) (storage.Backend, error) {
	switch name {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(db, pgstore.WithTxTimeout(cfg.Storage.TxTimeout))
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisstore.New(client.Client, redisstore.WithTxTimeout(cfg.Storage.TxTimeout)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", name)
	}
}

func newMemory(cfg config.Config) storage.Backend {
	return memory.New(memory.WithTxTimeout(cfg.Storage.TxTimeout))
}
