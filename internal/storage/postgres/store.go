// Package postgres stores records in a single JSONB table. Transactions take
// one advisory lock per key so concurrent read-modify-write sequences on the
// same record serialize across processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hemalink/internal/storage"
	"hemalink/pkg/platform/sentinel"
	txcontext "hemalink/pkg/platform/tx"
)

const backendName = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS hemalink_records (
	seq        BIGSERIAL,
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS hemalink_records_scan_idx ON hemalink_records (collection, seq);
`

// Store is pure I/O over hemalink_records.
type Store struct {
	db        *sql.DB
	txTimeout time.Duration
}

// Option tunes a Store.
type Option func(*Store)

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.txTimeout = d
	}
}

// New wraps an open database. Call EnsureSchema before first use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, txTimeout: storage.DefaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the records table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure records schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Put(ctx context.Context, c storage.Collection, key string, data []byte) error {
	query := `
		INSERT INTO hemalink_records (collection, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, c.String(), key, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", c, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, c storage.Collection, key string) ([]byte, error) {
	query := `SELECT data FROM hemalink_records WHERE collection = $1 AND key = $2`
	var data []byte
	err := s.execer(ctx).QueryRowContext(ctx, query, c.String(), key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", c, key, err)
	}
	return data, nil
}

func (s *Store) Scan(ctx context.Context, c storage.Collection) ([][]byte, error) {
	entries, err := s.ScanEntries(ctx, c)
	if err != nil {
		return nil, err
	}
	return storage.Documents(entries), nil
}

// ScanEntries returns records in first-insertion order; seq is assigned on
// insert and left alone by upserts.
func (s *Store) ScanEntries(ctx context.Context, c storage.Collection) ([]storage.Entry, error) {
	query := `SELECT key, data FROM hemalink_records WHERE collection = $1 ORDER BY seq`
	rows, err := s.execer(ctx).QueryContext(ctx, query, c.String())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c, err)
	}
	defer rows.Close()

	out := []storage.Entry{}
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c, err)
		}
		out = append(out, storage.Entry{Key: storage.KeyOf(c, key), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", c, err)
	}
	return out, nil
}

// RunInTx opens a SQL transaction, takes an advisory lock per key in sorted
// order and hands fn a context carrying the transaction. Store calls made
// with that context join it; any error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, store storage.RecordStore) error, keys ...storage.Key) error {
	ctx, cancel, err := storage.TxContext(ctx, s.txTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, k := range storage.SortedKeys(keys) {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k.String()); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}
	if err := storage.CheckTxContext(ctx); err != nil {
		return err
	}

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return backendName }

func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
