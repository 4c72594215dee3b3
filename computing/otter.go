package computing

import (
	"fmt"

	"github.com/maypok86/otter/v2"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// OtterMap adapts an otter cache to Backing. With a positive maximum size
// the memoized map becomes bounded: otter evicts by its own policy and a
// later Get simply recomputes.
//
// Conditional operations use otter's per-key Compute, which holds the
// bucket lock only for the duration of the equality check.
type OtterMap[K comparable, V any] struct {
	c     *otter.Cache[K, V]
	equal func(a, b V) bool
}

var _ Backing[string, []byte] = (*OtterMap[string, []byte])(nil)

// NewOtterMap builds an OtterMap. maximumSize <= 0 means unbounded;
// equal == nil uses cache.Equal[V].
func NewOtterMap[K comparable, V any](maximumSize int, equal func(a, b V) bool) (*OtterMap[K, V], error) {
	opt := &otter.Options[K, V]{}
	if maximumSize > 0 {
		opt.MaximumSize = maximumSize
	}
	c, err := otter.New(opt)
	if err != nil {
		return nil, fmt.Errorf("computing: otter backing: %w", err)
	}
	if equal == nil {
		equal = cache.Equal[V]
	}
	return &OtterMap[K, V]{c: c, equal: equal}, nil
}

func (o *OtterMap[K, V]) Load(k K) (V, bool) { return o.c.GetIfPresent(k) }

func (o *OtterMap[K, V]) Store(k K, v V) { o.c.Set(k, v) }

func (o *OtterMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	actual, inserted := o.c.SetIfAbsent(k, v)
	return actual, !inserted
}

func (o *OtterMap[K, V]) Swap(k K, v V) (V, bool) {
	var (
		prev  V
		found bool
	)
	o.c.Compute(k, func(old V, ok bool) (V, otter.ComputeOp) {
		prev, found = old, ok
		return v, otter.WriteOp
	})
	return prev, found
}

func (o *OtterMap[K, V]) LoadAndDelete(k K) (V, bool) { return o.c.Invalidate(k) }

func (o *OtterMap[K, V]) CompareAndSwap(k K, oldV, newV V) bool {
	swapped := false
	o.c.ComputeIfPresent(k, func(cur V) (V, otter.ComputeOp) {
		if !o.equal(cur, oldV) {
			return cur, otter.CancelOp
		}
		swapped = true
		return newV, otter.WriteOp
	})
	return swapped
}

func (o *OtterMap[K, V]) CompareAndDelete(k K, v V) bool {
	deleted := false
	o.c.ComputeIfPresent(k, func(cur V) (V, otter.ComputeOp) {
		if !o.equal(cur, v) {
			return cur, otter.CancelOp
		}
		deleted = true
		return cur, otter.InvalidateOp
	})
	return deleted
}

func (o *OtterMap[K, V]) Replace(k K, v V) (V, bool) {
	var (
		prev  V
		found bool
	)
	o.c.ComputeIfPresent(k, func(cur V) (V, otter.ComputeOp) {
		prev, found = cur, true
		return v, otter.WriteOp
	})
	return prev, found
}

func (o *OtterMap[K, V]) Range(f func(K, V) bool) {
	for k, v := range o.c.All() {
		if !f(k, v) {
			return
		}
	}
}

// Len is otter's estimated size; it may briefly lag pending evictions.
func (o *OtterMap[K, V]) Len() int { return o.c.EstimatedSize() }

func (o *OtterMap[K, V]) Clear() { o.c.InvalidateAll() }
