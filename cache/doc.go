// Package cache holds the pieces shared by the pocket caches: the Loader
// capability, the common Map surface, live key/value/entry views,
// eviction reasons and observability hooks, and the precondition checks
// applied to keys and values.
//
// The engines live in sibling packages:
//
//   - recency: strict LRU with O(1) promote/evict over an index-linked
//     arena. Not synchronized; the caller serializes access.
//   - computing: a lock-free memoizing map over a pluggable concurrent
//     backing. Misses are filled by a Loader in a loose race; losers are
//     discarded through an undo hook.
//   - soft: values held behind GC-reclaimable references, refilled by a
//     Loader, accepting entries demoted from a fronting tier.
//   - tiered: recency in front of soft in front of a Loader.
//
// Usage
//
//	front, _ := recency.New[string, []byte](recency.Options[string, []byte]{Capacity: 1024})
//	front.Put("a", []byte("1"))
//	if v, ok := front.Get("a"); ok {
//	    _ = v
//	}
//
// Nil keys and values of nillable types are programmer errors: operations
// panic with ErrNilKey / ErrNilValue before mutating anything.
package cache
