package computing

import (
	"fmt"

	"github.com/jedisct1/go-sieve-cache/pkg/sievecache"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// SieveMap adapts a sharded SIEVE cache to Backing. It is capacity-bounded
// and lossy: an insert into a full shard evicts a not-recently-visited
// entry, which a later Get recomputes.
//
// Atomic operations run under the key's shard lock via WithKeyLock.
type SieveMap[K comparable, V any] struct {
	c     *sievecache.ShardedSieveCache[K, V]
	equal func(a, b V) bool
}

var _ Backing[string, []byte] = (*SieveMap[string, []byte])(nil)

// NewSieveMap builds a SieveMap holding at most capacity entries.
func NewSieveMap[K comparable, V any](capacity int, equal func(a, b V) bool) (*SieveMap[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("computing: sieve backing capacity %d: %w", capacity, cache.ErrInvalidCapacity)
	}
	c, err := sievecache.NewSharded[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("computing: sieve backing: %w", err)
	}
	if equal == nil {
		equal = cache.Equal[V]
	}
	return &SieveMap[K, V]{c: c, equal: equal}, nil
}

func (s *SieveMap[K, V]) Load(k K) (V, bool) { return s.c.Get(k) }

func (s *SieveMap[K, V]) Store(k K, v V) { s.c.Insert(k, v) }

func (s *SieveMap[K, V]) LoadOrStore(k K, v V) (actual V, loaded bool) {
	s.c.WithKeyLock(k, func(sh *sievecache.SieveCache[K, V]) {
		if cur, ok := sh.Get(k); ok {
			actual, loaded = cur, true
			return
		}
		sh.Insert(k, v)
		actual = v
	})
	return actual, loaded
}

func (s *SieveMap[K, V]) Swap(k K, v V) (prev V, loaded bool) {
	s.c.WithKeyLock(k, func(sh *sievecache.SieveCache[K, V]) {
		prev, loaded = sh.Get(k)
		sh.Insert(k, v)
	})
	return prev, loaded
}

func (s *SieveMap[K, V]) LoadAndDelete(k K) (V, bool) { return s.c.Remove(k) }

func (s *SieveMap[K, V]) CompareAndSwap(k K, oldV, newV V) (swapped bool) {
	s.c.WithKeyLock(k, func(sh *sievecache.SieveCache[K, V]) {
		if cur, ok := sh.Get(k); ok && s.equal(cur, oldV) {
			sh.Insert(k, newV)
			swapped = true
		}
	})
	return swapped
}

func (s *SieveMap[K, V]) CompareAndDelete(k K, v V) (deleted bool) {
	s.c.WithKeyLock(k, func(sh *sievecache.SieveCache[K, V]) {
		if cur, ok := sh.Get(k); ok && s.equal(cur, v) {
			sh.Remove(k)
			deleted = true
		}
	})
	return deleted
}

func (s *SieveMap[K, V]) Replace(k K, v V) (prev V, ok bool) {
	s.c.WithKeyLock(k, func(sh *sievecache.SieveCache[K, V]) {
		if prev, ok = sh.Get(k); ok {
			sh.Insert(k, v)
		}
	})
	return prev, ok
}

// Range iterates over a snapshot of all shards.
func (s *SieveMap[K, V]) Range(f func(K, V) bool) {
	for _, it := range s.c.Items() {
		if !f(it.Key, it.Value) {
			return
		}
	}
}

func (s *SieveMap[K, V]) Len() int { return s.c.Len() }

func (s *SieveMap[K, V]) Clear() { s.c.Clear() }
