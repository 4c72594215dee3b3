package computing

import (
	"sync"
	"sync/atomic"
)

// SyncMap adapts sync.Map to Backing. V must be comparable because
// sync.Map's CompareAndSwap/CompareAndDelete compare with ==.
//
// Len reads a counter maintained beside the map. It is exact once writers
// are quiescent; a Clear racing with inserts may leave it briefly low.
type SyncMap[K comparable, V comparable] struct {
	m sync.Map
	n atomic.Int64
}

var _ Backing[string, int] = (*SyncMap[string, int])(nil)

// NewSyncMap returns an empty SyncMap.
func NewSyncMap[K comparable, V comparable]() *SyncMap[K, V] { return &SyncMap[K, V]{} }

func (s *SyncMap[K, V]) Load(k K) (V, bool) {
	v, ok := s.m.Load(k)
	return cast[V](v, ok)
}

func (s *SyncMap[K, V]) Store(k K, v V) { s.Swap(k, v) }

func (s *SyncMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	actual, loaded := s.m.LoadOrStore(k, v)
	if !loaded {
		s.n.Add(1)
	}
	return actual.(V), loaded
}

func (s *SyncMap[K, V]) Swap(k K, v V) (V, bool) {
	prev, loaded := s.m.Swap(k, v)
	if !loaded {
		s.n.Add(1)
	}
	return cast[V](prev, loaded)
}

func (s *SyncMap[K, V]) LoadAndDelete(k K) (V, bool) {
	v, ok := s.m.LoadAndDelete(k)
	if ok {
		s.n.Add(-1)
	}
	return cast[V](v, ok)
}

func (s *SyncMap[K, V]) CompareAndSwap(k K, oldV, newV V) bool {
	return s.m.CompareAndSwap(k, oldV, newV)
}

func (s *SyncMap[K, V]) CompareAndDelete(k K, v V) bool {
	if !s.m.CompareAndDelete(k, v) {
		return false
	}
	s.n.Add(-1)
	return true
}

// Replace retries a Load/CompareAndSwap pair until it either wins or
// observes the key as absent.
func (s *SyncMap[K, V]) Replace(k K, v V) (V, bool) {
	for {
		prev, ok := s.Load(k)
		if !ok {
			return prev, false
		}
		if s.m.CompareAndSwap(k, prev, v) {
			return prev, true
		}
	}
}

func (s *SyncMap[K, V]) Range(f func(K, V) bool) {
	s.m.Range(func(k, v any) bool { return f(k.(K), v.(V)) })
}

// Len is O(1). A delete may be counted before the racing insert it
// removed, so the counter is clamped at zero.
func (s *SyncMap[K, V]) Len() int {
	return int(max(s.n.Load(), 0))
}

func (s *SyncMap[K, V]) Clear() {
	s.m.Clear()
	s.n.Store(0)
}

func cast[V any](v any, ok bool) (V, bool) {
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}
