// Package memory is the process-local backend. It is the fallback when the
// durable backend is unreachable at startup, and the default for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hemalink/internal/storage"
	"hemalink/pkg/platform/sentinel"
)

const backendName = "memory"

type table struct {
	rows  map[string][]byte
	order []string
}

func newTable() *table {
	return &table{rows: make(map[string][]byte)}
}

func (t *table) put(key string, data []byte) {
	if _, ok := t.rows[key]; !ok {
		t.order = append(t.order, key)
	}
	t.rows[key] = storage.Clone(data)
}

// Store keeps every collection in an insertion-ordered map. One instance is
// constructed per process and shared by reference.
type Store struct {
	mu        sync.RWMutex
	tables    map[storage.Collection]*table
	locks     *storage.KeyedLocker
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

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables:    make(map[storage.Collection]*table, len(storage.Collections)),
		locks:     storage.NewKeyedLocker(),
		txTimeout: storage.DefaultTxTimeout,
	}
	for _, c := range storage.Collections {
		s.tables[c] = newTable()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table(c storage.Collection) (*table, error) {
	t, ok := s.tables[c]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", c)
	}
	return t, nil
}

func (s *Store) Put(_ context.Context, c storage.Collection, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(c)
	if err != nil {
		return err
	}
	t.put(key, data)
	return nil
}

func (s *Store) Get(_ context.Context, c storage.Collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(c)
	if err != nil {
		return nil, err
	}
	data, ok := t.rows[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return storage.Clone(data), nil
}

func (s *Store) Scan(ctx context.Context, c storage.Collection) ([][]byte, error) {
	entries, err := s.ScanEntries(ctx, c)
	if err != nil {
		return nil, err
	}
	return storage.Documents(entries), nil
}

func (s *Store) ScanEntries(_ context.Context, c storage.Collection) ([]storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(c)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Entry, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, storage.Entry{Key: storage.KeyOf(c, key), Data: storage.Clone(t.rows[key])})
	}
	return out, nil
}

// RunInTx holds the key locks for the whole call and stages writes; the
// batch is applied under the store's write lock only if fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, store storage.RecordStore) error, keys ...storage.Key) error {
	ctx, cancel, err := storage.TxContext(ctx, s.txTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	unlock := s.locks.Lock(keys...)
	defer unlock()

	if err := storage.CheckTxContext(ctx); err != nil {
		return err
	}

	staged := storage.NewStaged(s)
	if err := fn(ctx, staged); err != nil {
		return err
	}
	return s.apply(staged.Writes())
}

func (s *Store) apply(writes []storage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if _, err := s.table(w.Key.Collection); err != nil {
			return err
		}
	}
	for _, w := range writes {
		s.tables[w.Key.Collection].put(w.Key.ID, w.Data)
	}
	return nil
}

func (s *Store) Name() string { return backendName }

func (s *Store) Health(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
