// Package tiered composes the pocket caches into a two-level read-through
// cache: a strict LRU front, a soft-valued back, and a Loader behind both.
//
//	Get(k): front (LRU, mutex) -> back (soft) -> Loader (coalesced per key)
//
// Entries evicted from the front by capacity are demoted into the back tier
// instead of being dropped; a back-tier hit is promoted to the front again.
// A key lives in at most one tier at a time.
//
// A Cache is safe for concurrent use.
package tiered

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/pocketcache/cache"
	"github.com/IvanBrykalov/pocketcache/internal/singleflight"
	"github.com/IvanBrykalov/pocketcache/recency"
	"github.com/IvanBrykalov/pocketcache/soft"
)

// Options configures a Cache.
//   - Capacity:    front size (required, > 0)
//   - Generations: back-tier idle threshold (see soft.Options)
//   - Metrics:     receives tier-level hits/misses and evictions
type Options[V any] struct {
	Capacity    int
	Generations int
	Metrics     cache.Metrics
	Equal       func(a, b V) bool
}

// Cache is the tiered read-through cache.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	front *recency.Cache[K, V]
	back  *soft.Cache[K, V]

	loader  cache.Loader[K, V]
	group   singleflight.Group[K, loaded[V]]
	metrics cache.Metrics
	stats   cache.Counters

	// Tier sizes as last observed; Size reports their sum.
	frontN atomic.Int64
	backN  atomic.Int64
}

type loaded[V any] struct {
	v  V
	ok bool
}

var _ cache.Managed = (*Cache[string, int])(nil)

// New builds a Cache over loader.
func New[K comparable, V any](loader cache.Loader[K, V], opt Options[V]) (*Cache[K, V], error) {
	if loader == nil {
		return nil, cache.ErrNilLoader
	}
	c := &Cache[K, V]{
		loader:  loader,
		metrics: cache.OrNoop(opt.Metrics),
	}

	// The back tier never loads on its own; Get drives the Loader itself so
	// that misses can be coalesced.
	back, err := soft.New[K, V](cache.LoaderFunc[K, V](noLoad[K, V]), soft.Options[V]{
		Generations: opt.Generations,
		Metrics:     backSink[K, V]{c},
		Equal:       opt.Equal,
	})
	if err != nil {
		return nil, err
	}
	front, err := recency.New[K, V](recency.Options[K, V]{
		Capacity: opt.Capacity,
		Equal:    opt.Equal,
		OnEvict: func(e cache.Entry[K, V], reason cache.EvictReason) {
			c.metrics.Evict(reason)
			back.Evicted(e)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tiered: front: %w", err)
	}
	c.front, c.back = front, back
	return c, nil
}

// Get returns the value for k, consulting the front, then the back tier,
// then the Loader. Concurrent misses on the same key share one Loader call.
// Loader errors are returned as-is and nothing is stored.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	cache.CheckKey(k)

	c.mu.Lock()
	v, ok := c.front.Get(k)
	if !ok {
		// Promotion moves the entry under the lock, so a racing Put cannot
		// be overwritten by the older back-tier value.
		if v, ok = c.back.Remove(k); ok {
			c.front.Put(k, v)
			c.frontChanged()
		}
	}
	c.mu.Unlock()
	if ok {
		c.hit()
		return v, true, nil
	}

	c.stats.Miss()
	c.metrics.Miss()
	res, _, err := c.group.Do(ctx, k, func(ctx context.Context) (loaded[V], error) {
		v, ok, err := c.loader.Load(ctx, k)
		if err != nil || !ok || cache.IsNilValue(v) {
			return loaded[V]{}, err
		}
		c.promote(k, v)
		return loaded[V]{v: v, ok: true}, nil
	})
	if err != nil || !res.ok {
		var zero V
		return zero, false, err
	}
	return res.v, true, nil
}

// Peek returns the value for k from either tier without loading,
// promoting or counting.
func (c *Cache[K, V]) Peek(k K) (V, bool) {
	cache.CheckKey(k)
	c.mu.Lock()
	v, ok := c.front.Peek(k)
	c.mu.Unlock()
	if ok {
		return v, true
	}
	return c.back.Peek(k)
}

// Put stores k→v in the front and drops any back-tier copy.
func (c *Cache[K, V]) Put(k K, v V) (V, bool) {
	cache.CheckKey(k)
	cache.CheckValue(v)
	c.mu.Lock()
	defer c.mu.Unlock()
	// The back copy goes first: once v is in the front, a demotion may put
	// it into the back tier, where a later Remove would lose it.
	old, inBack := c.back.Remove(k)
	prev, ok := c.front.Put(k, v)
	c.frontChanged()
	if inBack && !ok {
		prev, ok = old, true
	}
	return prev, ok
}

// Remove deletes k from both tiers.
func (c *Cache[K, V]) Remove(k K) (V, bool) {
	cache.CheckKey(k)
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.front.Remove(k)
	if ok {
		c.frontChanged()
	}
	if old, inBack := c.back.Remove(k); inBack && !ok {
		v, ok = old, true
	}
	return v, ok
}

// Len returns the number of entries resident in either tier.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	n := c.front.Len()
	c.mu.Unlock()
	return n + c.back.Len()
}

// FrontLen returns the number of entries in the LRU front.
func (c *Cache[K, V]) FrontLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.front.Len()
}

// Stats returns tier-level counters: a hit in either tier is a hit.
func (c *Cache[K, V]) Stats() cache.Stats { return c.stats.Snapshot() }

// Clear drops both tiers without demotion.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.front.Clear()
	c.frontN.Store(0)
	c.back.Clear() // reports the zero total
	c.mu.Unlock()
}

// Evict demotes the front's LRU entry into the back tier and returns the
// number of entries moved (0 or 1).
func (c *Cache[K, V]) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.front.Evict()
	c.frontChanged()
	return n
}

func (c *Cache[K, V]) promote(k K, v V) {
	c.mu.Lock()
	c.front.Put(k, v)
	c.frontChanged()
	c.mu.Unlock()
}

// frontChanged records the front length and reports the total size.
// Callers hold c.mu.
func (c *Cache[K, V]) frontChanged() {
	c.frontN.Store(int64(c.front.Len()))
	c.reportSize()
}

func (c *Cache[K, V]) reportSize() {
	c.metrics.Size(int(c.frontN.Load() + c.backN.Load()))
}

func (c *Cache[K, V]) hit() {
	c.stats.Hit()
	c.metrics.Hit()
}

func noLoad[K comparable, V any](context.Context, K) (V, bool, error) {
	var zero V
	return zero, false, nil
}

// backSink receives the back tier's metrics. Lookups are counted once, at
// the tier level; reclamations are forwarded and sizes are folded into the
// tiered total.
type backSink[K comparable, V any] struct{ c *Cache[K, V] }

func (backSink[K, V]) Hit()  {}
func (backSink[K, V]) Miss() {}

func (s backSink[K, V]) Evict(reason cache.EvictReason) { s.c.metrics.Evict(reason) }

func (s backSink[K, V]) Size(n int) {
	s.c.backN.Store(int64(n))
	s.c.reportSize()
}
