package soft

import (
	"sync/atomic"
	"weak"
)

// Holder wraps a cached value whose storage may be reclaimed outside
// program control. A cleared holder behaves exactly like an absent key.
type Holder[V any] interface {
	// Get returns the value if it is still reachable. A successful Get may
	// re-strengthen the reference.
	Get() (V, bool)
	// Cleared reports whether the value is gone, without reviving it.
	Cleared() bool
	// Weaken drops any strong reference so the reclaimer may clear it.
	Weaken()
}

// HolderFactory wraps a freshly stored value.
type HolderFactory[V any] func(v V) Holder[V]

// weakHolder keeps a strong pointer while the value is in use and a weak
// pointer always. Once weakened, only the weak pointer remains and the
// garbage collector may reclaim the boxed value at its next cycle.
type weakHolder[V any] struct {
	strong atomic.Pointer[V]
	weak   weak.Pointer[V]
}

// NewWeakHolder is the default HolderFactory.
func NewWeakHolder[V any](v V) Holder[V] {
	box := new(V)
	*box = v
	h := &weakHolder[V]{weak: weak.Make(box)}
	h.strong.Store(box)
	return h
}

func (h *weakHolder[V]) Get() (V, bool) {
	if p := h.strong.Load(); p != nil {
		return *p, true
	}
	if p := h.weak.Value(); p != nil {
		h.strong.Store(p)
		return *p, true
	}
	var zero V
	return zero, false
}

func (h *weakHolder[V]) Cleared() bool {
	return h.strong.Load() == nil && h.weak.Value() == nil
}

func (h *weakHolder[V]) Weaken() { h.strong.Store(nil) }
