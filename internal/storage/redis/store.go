// Package redis keeps each collection in a hash plus a sorted set that
// remembers first-insertion order.
//
//	<prefix>:<collection>        HASH  key -> JSON document
//	<prefix>:<collection>:order  ZSET  key scored by insertion sequence
//	<prefix>:seq                 STRING sequence counter
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/platform/sentinel"
)

const (
	backendName   = "redis"
	defaultPrefix = "hemalink"
	maxTxAttempts = 5
)

// Store is a storage.Backend over go-redis.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	locks     *storage.KeyedLocker
	txTimeout time.Duration
}

// Option tunes a Store.
type Option func(*Store)

// WithPrefix namespaces every key. Defaults to "hemalink".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.txTimeout = d
	}
}

// New wraps a connected client. The store owns the client and closes it.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		prefix:    defaultPrefix,
		locks:     storage.NewKeyedLocker(),
		txTimeout: storage.DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) hashKey(c storage.Collection) string {
	return fmt.Sprintf("%s:%s", s.prefix, c)
}

func (s *Store) orderKey(c storage.Collection) string {
	return fmt.Sprintf("%s:%s:order", s.prefix, c)
}

func (s *Store) seqKey() string {
	return s.prefix + ":seq"
}

func (s *Store) Put(ctx context.Context, c storage.Collection, key string, data []byte) error {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, key, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrite(ctx, pipe, storage.Entry{Key: storage.KeyOf(c, key), Data: data}, seq)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, key, err)
	}
	return nil
}

func (s *Store) queueWrite(ctx context.Context, pipe redis.Pipeliner, e storage.Entry, seq int64) {
	pipe.HSet(ctx, s.hashKey(e.Key.Collection), e.Key.ID, e.Data)
	pipe.ZAddNX(ctx, s.orderKey(e.Key.Collection), redis.Z{Score: float64(seq), Member: e.Key.ID})
}

func (s *Store) Get(ctx context.Context, c storage.Collection, key string) ([]byte, error) {
	return s.get(ctx, s.client, c, key)
}

func (s *Store) get(ctx context.Context, cmd redis.Cmdable, c storage.Collection, key string) ([]byte, error) {
	data, err := cmd.HGet(ctx, s.hashKey(c), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

func (s *Store) ScanEntries(ctx context.Context, c storage.Collection) ([]storage.Entry, error) {
	return s.scanEntries(ctx, s.client, c)
}

func (s *Store) scanEntries(ctx context.Context, cmd redis.Cmdable, c storage.Collection) ([]storage.Entry, error) {
	keys, err := cmd.ZRange(ctx, s.orderKey(c), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s order: %w", c, err)
	}
	out := make([]storage.Entry, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := cmd.HMGet(ctx, s.hashKey(c), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c, err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// order entry without a document; skip it
			continue
		}
		out = append(out, storage.Entry{Key: storage.KeyOf(c, keys[i]), Data: []byte(str)})
	}
	return out, nil
}

// RunInTx serializes same-process callers with the keyed locker and guards
// against other processes with WATCH on the touched collections. Writes are
// staged and committed in one MULTI/EXEC; a lost WATCH race reruns fn.
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

	watched := s.watchKeys(keys)
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			staged := storage.NewStaged(&txView{store: s, cmd: rtx})
			if err := fn(ctx, staged); err != nil {
				return err
			}
			writes := staged.Writes()
			if len(writes) == 0 {
				return nil
			}
			last, err := rtx.IncrBy(ctx, s.seqKey(), int64(len(writes))).Result()
			if err != nil {
				return err
			}
			first := last - int64(len(writes)) + 1
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for i, w := range writes {
					s.queueWrite(ctx, pipe, w, first+int64(i))
				}
				return nil
			})
			return err
		}, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return dErrors.New(dErrors.CodeConflict, "transaction retries exhausted")
}

func (s *Store) watchKeys(keys []storage.Key) []string {
	seen := make(map[storage.Collection]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen[k.Collection] {
			continue
		}
		seen[k.Collection] = true
		out = append(out, s.hashKey(k.Collection))
	}
	return out
}

func (s *Store) Name() string { return backendName }

func (s *Store) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// txView reads through the watching connection. Writes never reach it;
// Staged buffers them.
type txView struct {
	store *Store
	cmd   redis.Cmdable
}

func (v *txView) Put(context.Context, storage.Collection, string, []byte) error {
	return fmt.Errorf("direct write inside redis transaction")
}

func (v *txView) Get(ctx context.Context, c storage.Collection, key string) ([]byte, error) {
	return v.store.get(ctx, v.cmd, c, key)
}

func (v *txView) Scan(ctx context.Context, c storage.Collection) ([][]byte, error) {
	entries, err := v.ScanEntries(ctx, c)
	if err != nil {
		return nil, err
	}
	return storage.Documents(entries), nil
}

func (v *txView) ScanEntries(ctx context.Context, c storage.Collection) ([]storage.Entry, error) {
	return v.store.scanEntries(ctx, v.cmd, c)
}
