// Package storage defines the record store the matching engine persists
// through, plus helpers shared by every backend.
//
// Records are opaque JSON documents addressed by (collection, key). The typed
// codec lives with the domain; backends only move bytes.
package storage

import (
	"context"
	"fmt"
)

// RecordStore is the narrow persistence contract consumed by the engine.
// Get returns sentinel.ErrNotFound (possibly wrapped) for a missing key.
// Scan returns every record of a collection in first-insertion order.
type RecordStore interface {
	Put(ctx context.Context, c Collection, key string, data []byte) error
	Get(ctx context.Context, c Collection, key string) ([]byte, error)
	Scan(ctx context.Context, c Collection) ([][]byte, error)
}

// Tx runs read-modify-write sequences under mutual exclusion on the given
// keys. Writes made through the store handed to fn are applied together or
// not at all; locks are released on every exit path.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store RecordStore) error, keys ...Key) error
}

// Backend is a complete storage implementation selected once at startup.
type Backend interface {
	RecordStore
	Tx
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// Key addresses one record.
type Key struct {
	Collection Collection
	ID         string
}

// KeyOf is shorthand for Key{c, id}.
func KeyOf(c Collection, id string) Key {
	return Key{Collection: c, ID: id}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Collection, k.ID)
}

// Entry is one keyed document, used for staged writes and keyed scans.
type Entry struct {
	Key  Key
	Data []byte
}

// EntryScanner is implemented by backends that can scan with keys attached.
type EntryScanner interface {
	ScanEntries(ctx context.Context, c Collection) ([]Entry, error)
}

// EntryStore is a RecordStore that can also scan keyed entries.
type EntryStore interface {
	RecordStore
	EntryScanner
}

// Documents strips keys from entries.
func Documents(entries []Entry) [][]byte {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Clone returns an independent copy of b. Backends hand out copies so
// callers cannot alias stored bytes.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
