package storage

import (
	"context"
	"errors"
	"log/slog"

	"hemalink/pkg/platform/sentinel"
)

// Guard is the read-path boundary around a RecordStore. Backend failures are
// logged and folded into the results the contract already has: a failed Get
// reads as not found, a failed Scan reads as empty. Put failures are logged
// and returned.
//
// Transactional code must not read through a Guard: a fabricated "not found"
// would become the baseline of a write.
type Guard struct {
	store  RecordStore
	logger *slog.Logger
}

// NewGuard wraps store. A nil logger discards.
func NewGuard(store RecordStore, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{store: store, logger: logger}
}

func (g *Guard) Put(ctx context.Context, c Collection, key string, data []byte) error {
	if err := g.store.Put(ctx, c, key, data); err != nil {
		g.logger.ErrorContext(ctx, "record store put failed",
			"collection", c.String(),
			"key", key,
			"error", err,
		)
		return err
	}
	return nil
}

func (g *Guard) Get(ctx context.Context, c Collection, key string) ([]byte, error) {
	data, err := g.store.Get(ctx, c, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		g.logger.ErrorContext(ctx, "record store get failed",
			"collection", c.String(),
			"key", key,
			"error", err,
		)
	}
	return nil, sentinel.ErrNotFound
}

func (g *Guard) Scan(ctx context.Context, c Collection) ([][]byte, error) {
	docs, err := g.store.Scan(ctx, c)
	if err != nil {
		g.logger.ErrorContext(ctx, "record store scan failed",
			"collection", c.String(),
			"error", err,
		)
		return [][]byte{}, nil
	}
	return docs, nil
}
