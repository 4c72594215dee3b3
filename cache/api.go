package cache

import (
	"context"
	"iter"
)

// Loader computes the value for a key that is absent from a cache.
// The boolean result reports whether a value exists for k; (zero, false, nil)
// means "no value" and is not an error. Errors are returned to the caller of
// the triggering operation as-is.
type Loader[K comparable, V any] interface {
	Load(ctx context.Context, k K) (V, bool, error)
}

// LoaderFunc adapts an ordinary function to the Loader interface.
type LoaderFunc[K comparable, V any] func(ctx context.Context, k K) (V, bool, error)

// Load calls f(ctx, k).
func (f LoaderFunc[K, V]) Load(ctx context.Context, k K) (V, bool, error) { return f(ctx, k) }

// Entry is a key/value pair. Eviction hooks receive entries by value;
// once handed out, an entry is no longer owned by the cache.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is the surface shared by every pocket cache.
// Get is intentionally absent: each engine defines its own lookup
// (promoting, loading, or both).
//
// Nil keys and values (for nillable K/V types) are rejected with a panic
// carrying ErrNilKey or ErrNilValue, before any state changes.
type Map[K comparable, V any] interface {
	// Len returns the number of resident entries.
	Len() int
	// IsEmpty reports whether Len() == 0.
	IsEmpty() bool

	ContainsKey(k K) bool
	ContainsValue(v V) bool

	// Peek returns the value for k without side effects on ordering,
	// statistics or loading.
	Peek(k K) (V, bool)

	// Put inserts or updates k→v and returns the previous value, if any.
	Put(k K, v V) (V, bool)
	// PutIfAbsent stores k→v only if k is absent. It returns the existing
	// value and true when k was already present.
	PutIfAbsent(k K, v V) (V, bool)
	// Replace updates k→v only if k is present and returns the previous value.
	Replace(k K, v V) (V, bool)
	// ReplaceIf updates k→newV only if k currently maps to oldV.
	ReplaceIf(k K, oldV, newV V) bool

	// Remove deletes k and returns its value, if it was present.
	Remove(k K) (V, bool)
	// RemoveIf deletes k only if it currently maps to v.
	RemoveIf(k K, v V) bool

	// Clear drops all entries.
	Clear()

	// All iterates over resident entries in unspecified order.
	All() iter.Seq2[K, V]

	Keys() Keys[K, V]
	Values() Values[K, V]
	Entries() Entries[K, V]
}

// Managed is what a management facade needs to expose an instance:
// read-only counters plus clear and a manual eviction trigger.
type Managed interface {
	Len() int
	Stats() Stats
	Clear()
	// Evict runs one manual eviction step and returns the number of
	// entries it removed.
	Evict() int
}
