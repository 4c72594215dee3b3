// Package recency implements a capacity-bounded map with strict
// least-recently-used eviction.
//
// Storage is a map[K]int32 index into an arena of nodes whose prev/next
// links are slot indices (MRU at head, LRU at tail). Promotion, insertion
// and eviction are O(1).
//
// A Cache is NOT safe for concurrent use. Callers serialize every call,
// including reads: Get reorders the list.
package recency

import (
	"fmt"
	"iter"
	"math"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// Options configures a Cache. Zero values other than Capacity are safe:
//   - nil OnEvict => evictions are silent
//   - nil Metrics => cache.NoopMetrics
//   - nil Equal   => cache.Equal[V]
type Options[K comparable, V any] struct {
	// Capacity is the maximum number of resident entries; must be > 0.
	Capacity int

	// OnEvict receives every entry evicted by the capacity bound or by
	// Evict(). It runs before the triggering call returns. Explicit
	// Remove and Clear do not call it.
	OnEvict func(e cache.Entry[K, V], reason cache.EvictReason)

	Metrics cache.Metrics

	// Equal compares values for ContainsValue/ReplaceIf/RemoveIf.
	Equal func(a, b V) bool
}

// Cache is a strict LRU map. See the package doc for the concurrency contract.
type Cache[K comparable, V any] struct {
	index map[K]int32
	list  arena[K, V]
	cap   int

	onEvict func(cache.Entry[K, V], cache.EvictReason)
	metrics cache.Metrics
	equal   func(a, b V) bool
	stats   cache.Counters
}

var (
	_ cache.Map[string, int] = (*Cache[string, int])(nil)
	_ cache.Managed          = (*Cache[string, int])(nil)
)

// New constructs a Cache. It returns cache.ErrInvalidCapacity for a
// non-positive (or int32-overflowing) capacity.
func New[K comparable, V any](opt Options[K, V]) (*Cache[K, V], error) {
	if opt.Capacity <= 0 || opt.Capacity > math.MaxInt32 {
		return nil, fmt.Errorf("recency: capacity %d: %w", opt.Capacity, cache.ErrInvalidCapacity)
	}
	if opt.Equal == nil {
		opt.Equal = cache.Equal[V]
	}
	hint := min(opt.Capacity, 4096)
	return &Cache[K, V]{
		index:   make(map[K]int32, hint),
		list:    newArena[K, V](hint),
		cap:     opt.Capacity,
		onEvict: opt.OnEvict,
		metrics: cache.OrNoop(opt.Metrics),
		equal:   opt.Equal,
	}, nil
}

// Capacity returns the fixed entry limit.
func (c *Cache[K, V]) Capacity() int { return c.cap }

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int { return c.list.len }

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool { return c.list.len == 0 }

// Get returns the value for k and promotes it to MRU.
// A miss returns false; no loader is consulted.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	cache.CheckKey(k)
	i, ok := c.index[k]
	if !ok {
		c.stats.Miss()
		c.metrics.Miss()
		var zero V
		return zero, false
	}
	c.list.moveToFront(i)
	c.stats.Hit()
	c.metrics.Hit()
	return c.list.nodes[i].val, true
}

// Peek returns the value for k without changing recency order or counters.
func (c *Cache[K, V]) Peek(k K) (V, bool) {
	cache.CheckKey(k)
	if i, ok := c.index[k]; ok {
		return c.list.nodes[i].val, true
	}
	var zero V
	return zero, false
}

// ContainsKey reports whether k is resident, without promoting it.
func (c *Cache[K, V]) ContainsKey(k K) bool {
	cache.CheckKey(k)
	_, ok := c.index[k]
	return ok
}

// ContainsValue reports whether any entry maps to v. O(n).
func (c *Cache[K, V]) ContainsValue(v V) bool {
	cache.CheckValue(v)
	for i := c.list.head; i != none; i = c.list.nodes[i].next {
		if c.equal(c.list.nodes[i].val, v) {
			return true
		}
	}
	return false
}

// Put inserts or updates k→v at MRU and returns the previous value.
// An insert that overflows capacity evicts exactly one entry, the LRU one,
// and reports it to OnEvict before returning.
func (c *Cache[K, V]) Put(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	if i, ok := c.index[k]; ok {
		prev := c.list.nodes[i].val
		c.list.nodes[i].val = v
		c.list.moveToFront(i)
		return prev, true
	}
	c.insert(k, v)
	var zero V
	return zero, false
}

// PutIfAbsent inserts k→v only if k is absent. When k is present the
// existing value is returned with true and nothing changes.
func (c *Cache[K, V]) PutIfAbsent(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	if i, ok := c.index[k]; ok {
		return c.list.nodes[i].val, true
	}
	c.insert(k, v)
	var zero V
	return zero, false
}

// Replace updates k→v only if k is present. It counts as an access.
func (c *Cache[K, V]) Replace(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	i, ok := c.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	prev := c.list.nodes[i].val
	c.list.nodes[i].val = v
	c.list.moveToFront(i)
	return prev, true
}

// ReplaceIf updates k→newV only if k currently maps to oldV.
// A successful replace counts as an access.
func (c *Cache[K, V]) ReplaceIf(k K, oldV, newV V) bool {
	cache.CheckKey(k)
	cache.CheckValue(oldV)
	cache.CheckValue(newV)
	i, ok := c.index[k]
	if !ok || !c.equal(c.list.nodes[i].val, oldV) {
		return false
	}
	c.list.nodes[i].val = newV
	c.list.moveToFront(i)
	return true
}

// Remove deletes k and returns its value.
func (c *Cache[K, V]) Remove(k K) (V, bool) {
	cache.CheckKey(k)
	i, ok := c.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	v := c.list.nodes[i].val
	c.drop(i)
	c.metrics.Size(c.list.len)
	return v, true
}

// RemoveIf deletes k only if it currently maps to v.
func (c *Cache[K, V]) RemoveIf(k K, v V) bool {
	cache.CheckKey(k)
	cache.CheckValue(v)
	i, ok := c.index[k]
	if !ok || !c.equal(c.list.nodes[i].val, v) {
		return false
	}
	c.drop(i)
	c.metrics.Size(c.list.len)
	return true
}

// Clear drops every entry and all recency state in one step.
// OnEvict is not called.
func (c *Cache[K, V]) Clear() {
	clear(c.index)
	c.list.reset()
	c.metrics.Size(0)
}

// Evict removes the current LRU entry, reporting it with
// cache.EvictManual. It returns the number of entries removed (0 or 1).
func (c *Cache[K, V]) Evict() int {
	if c.list.tail == none {
		return 0
	}
	c.evict(c.list.tail, cache.EvictManual)
	c.metrics.Size(c.list.len)
	return 1
}

// Stats returns the hit/miss counters recorded by Get.
func (c *Cache[K, V]) Stats() cache.Stats { return c.stats.Snapshot() }

// Oldest returns the LRU entry without promoting it.
func (c *Cache[K, V]) Oldest() (cache.Entry[K, V], bool) { return c.entryAt(c.list.tail) }

// Newest returns the MRU entry.
func (c *Cache[K, V]) Newest() (cache.Entry[K, V], bool) { return c.entryAt(c.list.head) }

// KeysByRecency returns a snapshot of keys from least to most recently used.
func (c *Cache[K, V]) KeysByRecency() []K {
	out := make([]K, 0, c.list.len)
	for i := c.list.tail; i != none; i = c.list.nodes[i].prev {
		out = append(out, c.list.nodes[i].key)
	}
	return out
}

// All iterates over resident entries in unspecified order. Removing the
// yielded key (directly or through a view) during iteration is allowed.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, i := range c.index {
			if !yield(k, c.list.nodes[i].val) {
				return
			}
		}
	}
}

// Keys returns a live key view; removals propagate to the cache.
func (c *Cache[K, V]) Keys() cache.Keys[K, V] { return cache.KeysOf[K, V](c) }

// Values returns a live value view.
func (c *Cache[K, V]) Values() cache.Values[K, V] { return cache.ValuesOf[K, V](c, c.equal) }

// Entries returns a live entry view.
func (c *Cache[K, V]) Entries() cache.Entries[K, V] { return cache.EntriesOf[K, V](c, c.equal) }

// -------------------- internals --------------------

// insert adds a new MRU entry and restores the capacity bound. Size grows
// by at most one per call, so one eviction is always enough.
func (c *Cache[K, V]) insert(k K, v V) {
	i := c.list.alloc(k, v)
	c.index[k] = i
	c.list.pushFront(i)
	if c.list.len > c.cap {
		c.evict(c.list.tail, cache.EvictCapacity)
	}
	c.metrics.Size(c.list.len)
}

// drop unlinks and frees slot i and removes its key from the index.
func (c *Cache[K, V]) drop(i int32) {
	delete(c.index, c.list.nodes[i].key)
	c.list.unlink(i)
	c.list.release(i)
}

// evict removes slot i and hands the entry, by value, to OnEvict.
func (c *Cache[K, V]) evict(i int32, reason cache.EvictReason) {
	e := cache.Entry[K, V]{Key: c.list.nodes[i].key, Value: c.list.nodes[i].val}
	c.drop(i)
	c.metrics.Evict(reason)
	if c.onEvict != nil {
		c.onEvict(e, reason)
	}
}

func (c *Cache[K, V]) entryAt(i int32) (cache.Entry[K, V], bool) {
	if i == none {
		return cache.Entry[K, V]{}, false
	}
	n := &c.list.nodes[i]
	return cache.Entry[K, V]{Key: n.key, Value: n.val}, true
}
