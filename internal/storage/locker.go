package storage

import (
	"hash/fnv"
	"sort"
	"sync"
)

// numLockShards bounds the lock table. Keys hash onto shards, so unrelated
// keys may share a shard; correctness only needs equal keys to collide.
const numLockShards = 128

// KeyedLocker serializes work per record key using sharded mutexes.
type KeyedLocker struct {
	shards [numLockShards]sync.Mutex
}

// NewKeyedLocker returns a ready locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{}
}

// Lock acquires every shard covering keys in ascending shard order, which
// keeps multi-key callers deadlock free. The returned func releases them.
func (l *KeyedLocker) Lock(keys ...Key) func() {
	shards := shardsFor(keys)
	for _, s := range shards {
		l.shards[s].Lock()
	}
	return func() {
		for i := len(shards) - 1; i >= 0; i-- {
			l.shards[shards[i]].Unlock()
		}
	}
}

func shardsFor(keys []Key) []int {
	if len(keys) == 0 {
		return []int{0}
	}
	set := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		set[shardOf(k)] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func shardOf(k Key) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.String()))
	return int(h.Sum32() % numLockShards)
}

// SortedKeys returns keys deduplicated and ordered by their string form.
// Backends with their own lock primitives take locks in this order.
func SortedKeys(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
