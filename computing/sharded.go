package computing

import (
	"sync"

	"github.com/IvanBrykalov/pocketcache/cache"
	"github.com/IvanBrykalov/pocketcache/internal/util"
)

// ShardedMap is a Backing split into independently locked shards.
// Each shard is a plain map under an RWMutex; a key's shard is chosen by a
// seeded maphash, so any comparable key type works. Values are compared
// with a caller-supplied equality, so V need not be comparable.
type ShardedMap[K comparable, V any] struct {
	shards []*mapShard[K, V]
	hash   util.Hasher[K]
	equal  func(a, b V) bool
}

type mapShard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
	_  util.CacheLinePad
}

var _ Backing[string, []byte] = (*ShardedMap[string, []byte])(nil)

// NewShardedMap builds a ShardedMap.
//   - shards <= 0 => util.ReasonableShardCount(); otherwise rounded up to a power of two, at most util.MaxShards
//   - equal == nil => cache.Equal[V]
func NewShardedMap[K comparable, V any](shards int, equal func(a, b V) bool) *ShardedMap[K, V] {
	n := util.ShardCount(shards)
	if equal == nil {
		equal = cache.Equal[V]
	}
	s := &ShardedMap[K, V]{
		shards: make([]*mapShard[K, V], n),
		hash:   util.NewHasher[K](),
		equal:  equal,
	}
	for i := range s.shards {
		s.shards[i] = &mapShard[K, V]{m: make(map[K]V)}
	}
	return s
}

// Shards returns the number of shards.
func (s *ShardedMap[K, V]) Shards() int { return len(s.shards) }

func (s *ShardedMap[K, V]) shard(k K) *mapShard[K, V] {
	return s.shards[util.ShardIndex(s.hash.Sum64(k), len(s.shards))]
}

func (s *ShardedMap[K, V]) Load(k K) (V, bool) {
	sh := s.shard(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[k]
	return v, ok
}

func (s *ShardedMap[K, V]) Store(k K, v V) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[k] = v
}

func (s *ShardedMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[k]; ok {
		return cur, true
	}
	sh.m[k] = v
	return v, false
}

func (s *ShardedMap[K, V]) Swap(k K, v V) (V, bool) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev, ok := sh.m[k]
	sh.m[k] = v
	return prev, ok
}

func (s *ShardedMap[K, V]) LoadAndDelete(k K) (V, bool) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[k]
	if ok {
		delete(sh.m, k)
	}
	return v, ok
}

func (s *ShardedMap[K, V]) CompareAndSwap(k K, oldV, newV V) bool {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[k]; ok && s.equal(cur, oldV) {
		sh.m[k] = newV
		return true
	}
	return false
}

func (s *ShardedMap[K, V]) CompareAndDelete(k K, v V) bool {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[k]; ok && s.equal(cur, v) {
		delete(sh.m, k)
		return true
	}
	return false
}

func (s *ShardedMap[K, V]) Replace(k K, v V) (V, bool) {
	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev, ok := sh.m[k]
	if ok {
		sh.m[k] = v
	}
	return prev, ok
}

// Range visits shards one at a time over a per-shard snapshot, so f may
// call back into the map (including deletes) without deadlocking.
func (s *ShardedMap[K, V]) Range(f func(K, V) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		snap := make([]cache.Entry[K, V], 0, len(sh.m))
		for k, v := range sh.m {
			snap = append(snap, cache.Entry[K, V]{Key: k, Value: v})
		}
		sh.mu.RUnlock()
		for _, e := range snap {
			if !f(e.Key, e.Value) {
				return
			}
		}
	}
}

func (s *ShardedMap[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.m)
		sh.mu.RUnlock()
	}
	return total
}

func (s *ShardedMap[K, V]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.m)
		sh.mu.Unlock()
	}
}
