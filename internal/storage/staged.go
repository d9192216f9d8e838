package storage

import (
	"context"
)

// Staged buffers writes over a base store. Reads see the buffered writes
// first; nothing reaches the base until the owner commits Writes().
type Staged struct {
	base   EntryStore
	writes []Entry
	index  map[Key]int
}

// NewStaged returns an empty write buffer over base.
func NewStaged(base EntryStore) *Staged {
	return &Staged{base: base, index: make(map[Key]int)}
}

func (s *Staged) Put(_ context.Context, c Collection, key string, data []byte) error {
	k := KeyOf(c, key)
	if i, ok := s.index[k]; ok {
		s.writes[i].Data = Clone(data)
		return nil
	}
	s.index[k] = len(s.writes)
	s.writes = append(s.writes, Entry{Key: k, Data: Clone(data)})
	return nil
}

func (s *Staged) Get(ctx context.Context, c Collection, key string) ([]byte, error) {
	if i, ok := s.index[KeyOf(c, key)]; ok {
		return Clone(s.writes[i].Data), nil
	}
	return s.base.Get(ctx, c, key)
}

func (s *Staged) Scan(ctx context.Context, c Collection) ([][]byte, error) {
	entries, err := s.ScanEntries(ctx, c)
	if err != nil {
		return nil, err
	}
	return Documents(entries), nil
}

// ScanEntries overlays staged writes on the base scan: replaced records keep
// their position, new records are appended in staging order.
func (s *Staged) ScanEntries(ctx context.Context, c Collection) ([]Entry, error) {
	base, err := s.base.ScanEntries(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(base))
	seen := make(map[Key]bool, len(base))
	for _, e := range base {
		if i, ok := s.index[e.Key]; ok {
			e = Entry{Key: e.Key, Data: Clone(s.writes[i].Data)}
		}
		seen[e.Key] = true
		out = append(out, e)
	}
	for _, w := range s.writes {
		if w.Key.Collection == c && !seen[w.Key] {
			out = append(out, Entry{Key: w.Key, Data: Clone(w.Data)})
		}
	}
	return out, nil
}

// Writes returns the buffered writes in staging order.
func (s *Staged) Writes() []Entry {
	out := make([]Entry, len(s.writes))
	copy(out, s.writes)
	return out
}
