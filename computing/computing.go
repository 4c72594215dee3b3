// Package computing implements a lock-free memoizing map over a pluggable
// concurrent backing.
//
// Get fills misses through a Loader without holding any lock. Concurrent
// callers that miss the same key may each run the Loader (a "loose race");
// the first to publish via the backing's atomic LoadOrStore wins, and every
// loser discards its value, reports it to the Undo hook, and returns the
// winner. Duplicate computation under contention is the price for never
// parking readers behind a slow load.
//
// Everything other than Get forwards straight to the backing.
package computing

import (
	"context"
	"errors"
	"iter"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// ErrNilBacking is returned by New when no backing map is supplied.
var ErrNilBacking = errors.New("computing: nil backing map")

// UndoFunc is invoked when a computed value lost the publish race.
// discarded is the caller's own, never-published value; winner is the
// value that was published and is being returned instead. Use it to
// release resources held by discarded.
type UndoFunc[K comparable, V any] func(loader cache.Loader[K, V], k K, discarded, winner V)

// Options configures a Map.
//   - nil Undo    => losers are dropped silently
//   - nil Metrics => cache.NoopMetrics
//   - nil Equal   => cache.Equal[V] (used by ContainsValue)
type Options[K comparable, V any] struct {
	Undo    UndoFunc[K, V]
	Metrics cache.Metrics
	Equal   func(a, b V) bool
}

// Map is the optimistic computing map. Safe for concurrent use.
type Map[K comparable, V any] struct {
	backing Backing[K, V]
	loader  cache.Loader[K, V]
	undo    UndoFunc[K, V]
	metrics cache.Metrics
	equal   func(a, b V) bool
	stats   cache.Counters
	sized   bool // metrics wants Size updates
}

var (
	_ cache.Map[string, int] = (*Map[string, int])(nil)
	_ cache.Managed          = (*Map[string, int])(nil)
)

// New wraps backing with loader-driven memoization.
func New[K comparable, V any](backing Backing[K, V], loader cache.Loader[K, V], opt Options[K, V]) (*Map[K, V], error) {
	if backing == nil {
		return nil, ErrNilBacking
	}
	if loader == nil {
		return nil, cache.ErrNilLoader
	}
	if opt.Equal == nil {
		opt.Equal = cache.Equal[V]
	}
	metrics := cache.OrNoop(opt.Metrics)
	_, noop := metrics.(cache.NoopMetrics)
	return &Map[K, V]{
		backing: backing,
		loader:  loader,
		undo:    opt.Undo,
		metrics: metrics,
		equal:   opt.Equal,
		sized:   !noop,
	}, nil
}

// reportSize pushes the backing's length to metrics. Backing.Len may be
// O(shards) or worse, so it is skipped when nobody listens.
func (m *Map[K, V]) reportSize() {
	if m.sized {
		m.metrics.Size(m.backing.Len())
	}
}

// Get returns the value for k, computing it on a miss.
//
// The Loader runs without any lock held and may run more than once for the
// same key under contention. Exactly one computed value is published; every
// caller returns that value. A Loader error is returned as-is and nothing is
// published; so is a Loader "no value" (false) result.
func (m *Map[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	cache.CheckKey(k)
	if v, ok := m.backing.Load(k); ok {
		m.stats.Hit()
		m.metrics.Hit()
		return v, true, nil
	}
	m.stats.Miss()
	m.metrics.Miss()

	v, ok, err := m.loader.Load(ctx, k)
	if err != nil || !ok || cache.IsNilValue(v) {
		var zero V
		return zero, false, err
	}

	winner, lost := m.backing.LoadOrStore(k, v)
	if !lost {
		m.reportSize()
		return v, true, nil
	}
	if m.undo != nil {
		m.undo(m.loader, k, v, winner)
	}
	return winner, true, nil
}

// Stats returns hit/miss counters recorded by Get.
func (m *Map[K, V]) Stats() cache.Stats { return m.stats.Snapshot() }

// Evict is a no-op: the map has no eviction order of its own (a bounded
// backing evicts by its own policy). It always returns 0.
func (m *Map[K, V]) Evict() int { return 0 }

// ---- delegated operations ----

func (m *Map[K, V]) Len() int      { return m.backing.Len() }
func (m *Map[K, V]) IsEmpty() bool { return m.backing.Len() == 0 }

func (m *Map[K, V]) ContainsKey(k K) bool {
	cache.CheckKey(k)
	_, ok := m.backing.Load(k)
	return ok
}

func (m *Map[K, V]) ContainsValue(v V) bool {
	cache.CheckValue(v)
	found := false
	m.backing.Range(func(_ K, cur V) bool {
		found = m.equal(cur, v)
		return !found
	})
	return found
}

// Peek reads k from the backing without loading or counting.
func (m *Map[K, V]) Peek(k K) (V, bool) {
	cache.CheckKey(k)
	return m.backing.Load(k)
}

func (m *Map[K, V]) Put(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	prev, ok := m.backing.Swap(k, v)
	if !ok {
		m.reportSize()
	}
	return prev, ok
}

// PutAll stores every entry of src.
func (m *Map[K, V]) PutAll(src iter.Seq2[K, V]) {
	for k, v := range src {
		m.Put(k, v)
	}
}

func (m *Map[K, V]) PutIfAbsent(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	actual, loaded := m.backing.LoadOrStore(k, v)
	if !loaded {
		m.reportSize()
		var zero V
		return zero, false
	}
	return actual, true
}

func (m *Map[K, V]) Replace(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	return m.backing.Replace(k, v)
}

func (m *Map[K, V]) ReplaceIf(k K, oldV, newV V) bool {
	cache.CheckKey(k)
	cache.CheckValue(oldV)
	cache.CheckValue(newV)
	return m.backing.CompareAndSwap(k, oldV, newV)
}

func (m *Map[K, V]) Remove(k K) (V, bool) {
	cache.CheckKey(k)
	v, ok := m.backing.LoadAndDelete(k)
	if ok {
		m.reportSize()
	}
	return v, ok
}

func (m *Map[K, V]) RemoveIf(k K, v V) bool {
	cache.CheckKey(k)
	cache.CheckValue(v)
	if !m.backing.CompareAndDelete(k, v) {
		return false
	}
	m.reportSize()
	return true
}

func (m *Map[K, V]) Clear() {
	m.backing.Clear()
	m.metrics.Size(0)
}

func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) { m.backing.Range(yield) }
}

func (m *Map[K, V]) Keys() cache.Keys[K, V]       { return cache.KeysOf[K, V](m) }
func (m *Map[K, V]) Values() cache.Values[K, V]   { return cache.ValuesOf[K, V](m, m.equal) }
func (m *Map[K, V]) Entries() cache.Entries[K, V] { return cache.EntriesOf[K, V](m, m.equal) }
