// Package soft implements a Loader-backed cache whose values may be
// reclaimed by the garbage collector between operations.
//
// Every value sits behind a Holder. The default holder keeps a strong and a
// weak pointer; a GC-cycle observer advances a generation counter on every
// collection and weakens holders that have not been touched for
// Options.Generations cycles. A weakened value is reclaimed at the next
// collection unless it is read first, which pins it again. Once the
// collector clears it, the key reads as absent and the next Get reloads it.
//
// Evicted accepts entries demoted from a capacity-bounded tier in front,
// so their values are kept softly instead of being dropped.
//
// A Cache is safe for concurrent use.
package soft

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// DefaultGenerations is the idle threshold, in GC cycles, applied when
// Options.Generations is not positive.
const DefaultGenerations = 2

// Options configures a Cache.
//   - Generations <= 0 => DefaultGenerations
//   - nil Holders      => NewWeakHolder
//   - nil Metrics      => cache.NoopMetrics
//   - nil Equal        => cache.Equal[V]
type Options[V any] struct {
	Generations int
	Holders     HolderFactory[V]
	Metrics     cache.Metrics
	Equal       func(a, b V) bool
}

// Cache is a soft-valued, loader-backed cache.
//
// Metrics.Size receives the number of stored holders after every change.
// A holder the collector cleared still counts until a lookup, Purge or the
// next sweep drops it.
type Cache[K comparable, V any] struct {
	store   sync.Map // K -> *entry[V]
	loader  cache.Loader[K, V]
	holders HolderFactory[V]
	metrics cache.Metrics
	equal   func(a, b V) bool
	stats   cache.Counters

	gen   atomic.Uint64
	idle  uint64
	slots atomic.Int64 // stored entries, cleared or not
}

// entry pairs a holder with the generation it was last touched in.
// Entries are never mutated in place; conditional ops swap whole entries.
type entry[V any] struct {
	h       Holder[V]
	touched atomic.Uint64
}

var (
	_ cache.Map[string, int] = (*Cache[string, int])(nil)
	_ cache.Managed          = (*Cache[string, int])(nil)
)

// New builds a Cache over loader.
func New[K comparable, V any](loader cache.Loader[K, V], opt Options[V]) (*Cache[K, V], error) {
	if loader == nil {
		return nil, cache.ErrNilLoader
	}
	if opt.Generations <= 0 {
		opt.Generations = DefaultGenerations
	}
	if opt.Holders == nil {
		opt.Holders = NewWeakHolder[V]
	}
	if opt.Equal == nil {
		opt.Equal = cache.Equal[V]
	}
	c := &Cache[K, V]{
		loader:  loader,
		holders: opt.Holders,
		metrics: cache.OrNoop(opt.Metrics),
		equal:   opt.Equal,
		idle:    uint64(opt.Generations),
	}
	watchGC(c)
	return c, nil
}

// Get returns the live value for k. If the key is absent or its holder was
// cleared, the Loader is consulted; a returned value is stored and
// returned, while "no value" stores nothing. Loader errors are returned as-is.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	cache.CheckKey(k)
	if v, ok := c.lookup(k, true); ok {
		c.stats.Hit()
		c.metrics.Hit()
		return v, true, nil
	}
	c.stats.Miss()
	c.metrics.Miss()

	v, ok, err := c.loader.Load(ctx, k)
	if err != nil || !ok || cache.IsNilValue(v) {
		var zero V
		return zero, false, err
	}
	c.publish(k, v)
	return v, true, nil
}

// Lookup returns the live value for k without consulting the Loader.
// It counts a hit or a miss and touches the holder.
func (c *Cache[K, V]) Lookup(k K) (V, bool) {
	cache.CheckKey(k)
	v, ok := c.lookup(k, true)
	if ok {
		c.stats.Hit()
		c.metrics.Hit()
	} else {
		c.stats.Miss()
		c.metrics.Miss()
	}
	return v, ok
}

// Evicted stores e as a live holder, bypassing the Loader. It is meant to
// receive entries evicted from a fronting tier.
func (c *Cache[K, V]) Evicted(e cache.Entry[K, V]) {
	cache.CheckKey(e.Key)
	cache.CheckValue(e.Value)
	c.publish(e.Key, e.Value)
}

// Peek returns the live value for k with no loading, counting or touching.
func (c *Cache[K, V]) Peek(k K) (V, bool) {
	cache.CheckKey(k)
	return c.lookup(k, false)
}

func (c *Cache[K, V]) Len() int {
	n := 0
	c.store.Range(func(_, x any) bool {
		if !x.(*entry[V]).h.Cleared() {
			n++
		}
		return true
	})
	return n
}

func (c *Cache[K, V]) IsEmpty() bool { return c.Len() == 0 }

func (c *Cache[K, V]) ContainsKey(k K) bool {
	_, ok := c.Peek(k)
	return ok
}

func (c *Cache[K, V]) ContainsValue(v V) bool {
	cache.CheckValue(v)
	for _, cur := range c.All() {
		if c.equal(cur, v) {
			return true
		}
	}
	return false
}

func (c *Cache[K, V]) Put(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	prev, loaded := c.store.Swap(k, c.wrap(v))
	if !loaded {
		c.resize(1)
		var zero V
		return zero, false
	}
	return prev.(*entry[V]).h.Get()
}

func (c *Cache[K, V]) PutIfAbsent(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	fresh := c.wrap(v)
	for {
		x, loaded := c.store.LoadOrStore(k, fresh)
		if !loaded {
			c.resize(1)
			var zero V
			return zero, false
		}
		old := x.(*entry[V])
		if cur, ok := old.h.Get(); ok {
			return cur, true
		}
		// A cleared holder counts as absent: take its slot.
		if c.store.CompareAndSwap(k, old, fresh) {
			var zero V
			return zero, false
		}
	}
}

func (c *Cache[K, V]) Replace(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	fresh := c.wrap(v)
	for {
		old, cur, ok := c.live(k)
		if !ok {
			var zero V
			return zero, false
		}
		if c.store.CompareAndSwap(k, old, fresh) {
			return cur, true
		}
	}
}

func (c *Cache[K, V]) ReplaceIf(k K, oldV, newV V) bool {
	cache.CheckKey(k)
	cache.CheckValue(oldV)
	cache.CheckValue(newV)
	old, cur, ok := c.live(k)
	if !ok || !c.equal(cur, oldV) {
		return false
	}
	return c.store.CompareAndSwap(k, old, c.wrap(newV))
}

func (c *Cache[K, V]) Remove(k K) (V, bool) {
	cache.CheckKey(k)
	x, ok := c.store.LoadAndDelete(k)
	if !ok {
		var zero V
		return zero, false
	}
	c.resize(-1)
	return x.(*entry[V]).h.Get()
}

func (c *Cache[K, V]) RemoveIf(k K, v V) bool {
	cache.CheckKey(k)
	cache.CheckValue(v)
	old, cur, ok := c.live(k)
	if !ok || !c.equal(cur, v) {
		return false
	}
	if !c.store.CompareAndDelete(k, old) {
		return false
	}
	c.resize(-1)
	return true
}

// Clear drops every holder immediately, independent of reclamation.
func (c *Cache[K, V]) Clear() {
	c.store.Clear()
	c.slots.Store(0)
	c.metrics.Size(0)
}

// Purge drops holders whose values were reclaimed and returns how many.
func (c *Cache[K, V]) Purge() int {
	n := 0
	c.store.Range(func(k, x any) bool {
		if x.(*entry[V]).h.Cleared() && c.store.CompareAndDelete(k, x) {
			c.reclaimed()
			n++
		}
		return true
	})
	return n
}

// Evict weakens every holder, making all values reclaimable at the next
// collection, and purges the ones already cleared. It returns the number
// of holders purged.
func (c *Cache[K, V]) Evict() int {
	c.store.Range(func(_, x any) bool {
		x.(*entry[V]).h.Weaken()
		return true
	})
	return c.Purge()
}

func (c *Cache[K, V]) Stats() cache.Stats { return c.stats.Snapshot() }

// All yields live entries; cleared holders are skipped.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		c.store.Range(func(k, x any) bool {
			e := x.(*entry[V])
			if e.h.Cleared() {
				return true
			}
			v, ok := e.h.Get()
			if !ok {
				return true
			}
			return yield(k.(K), v)
		})
	}
}

func (c *Cache[K, V]) Keys() cache.Keys[K, V]       { return cache.KeysOf[K, V](c) }
func (c *Cache[K, V]) Values() cache.Values[K, V]   { return cache.ValuesOf[K, V](c, c.equal) }
func (c *Cache[K, V]) Entries() cache.Entries[K, V] { return cache.EntriesOf[K, V](c, c.equal) }

// -------------------- internals --------------------

func (c *Cache[K, V]) wrap(v V) *entry[V] {
	e := &entry[V]{h: c.holders(v)}
	e.touched.Store(c.gen.Load())
	return e
}

// publish stores a fresh holder for v under k.
func (c *Cache[K, V]) publish(k K, v V) {
	if _, loaded := c.store.Swap(k, c.wrap(v)); !loaded {
		c.resize(1)
	}
}

// resize adjusts the slot count by d and reports it. A delete may land
// before the racing insert it undid, so the reported size is clamped.
func (c *Cache[K, V]) resize(d int64) {
	c.metrics.Size(int(max(c.slots.Add(d), 0)))
}

// reclaimed accounts for a cleared holder that was just dropped.
func (c *Cache[K, V]) reclaimed() {
	c.metrics.Evict(cache.EvictReclaimed)
	c.resize(-1)
}

// lookup returns the live value for k. A cleared holder is removed and
// reported as reclaimed; touch refreshes the holder's generation.
func (c *Cache[K, V]) lookup(k K, touch bool) (V, bool) {
	x, ok := c.store.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	e := x.(*entry[V])
	if e.h.Cleared() {
		if c.store.CompareAndDelete(k, x) {
			c.reclaimed()
		}
		var zero V
		return zero, false
	}
	v, live := e.h.Get()
	if !live {
		var zero V
		return zero, false
	}
	if touch {
		e.touched.Store(c.gen.Load())
	}
	return v, true
}

// live returns the current entry for k together with its live value.
func (c *Cache[K, V]) live(k K) (*entry[V], V, bool) {
	x, ok := c.store.Load(k)
	if !ok {
		var zero V
		return nil, zero, false
	}
	e := x.(*entry[V])
	v, live := e.h.Get()
	return e, v, live
}

// sweep runs once per GC cycle: holders idle for the configured number of
// generations are weakened, and holders already cleared are dropped.
func (c *Cache[K, V]) sweep() {
	now := c.gen.Load()
	c.store.Range(func(k, x any) bool {
		e := x.(*entry[V])
		if e.h.Cleared() {
			if c.store.CompareAndDelete(k, x) {
				c.reclaimed()
			}
			return true
		}
		if now-e.touched.Load() >= c.idle {
			e.h.Weaken()
		}
		return true
	})
}
