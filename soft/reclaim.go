package soft

import (
	"runtime"
	"weak"
)

// gcSentinel is allocated unreachable so that its cleanup fires once per
// collection. It holds a pointer field to stay out of the tiny allocator,
// whose batched blocks may never be freed.
type gcSentinel struct {
	_ *byte
	_ [3]uintptr
}

// watchGC arms a per-cycle callback for c. Each firing advances the
// generation, sweeps, and re-arms; the chain holds c only weakly and stops
// once c becomes unreachable. Cleanups run on the runtime's cleanup
// goroutine, concurrently with callers.
func watchGC[K comparable, V any](c *Cache[K, V]) {
	arm(weak.Make(c))
}

func arm[K comparable, V any](wp weak.Pointer[Cache[K, V]]) {
	runtime.AddCleanup(new(gcSentinel), onGC[K, V], wp)
}

func onGC[K comparable, V any](wp weak.Pointer[Cache[K, V]]) {
	c := wp.Value()
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.sweep()
	arm(wp)
}
