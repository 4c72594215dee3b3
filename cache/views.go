package cache

import "iter"

// Source is the minimal backing a live view needs. Every Map is a Source.
type Source[K comparable, V any] interface {
	Len() int
	Peek(k K) (V, bool)
	ContainsKey(k K) bool
	ContainsValue(v V) bool
	Remove(k K) (V, bool)
	RemoveIf(k K, v V) bool
	All() iter.Seq2[K, V]
}

// Keys is a live view over the keys of a cache.
type Keys[K comparable, V any] struct {
	src Source[K, V]
}

// Values is a live view over the values of a cache.
type Values[K comparable, V any] struct {
	src   Source[K, V]
	equal func(a, b V) bool
}

// Entries is a live view over the entries of a cache.
type Entries[K comparable, V any] struct {
	src   Source[K, V]
	equal func(a, b V) bool
}

// KeysOf returns a key view backed by src.
func KeysOf[K comparable, V any](src Source[K, V]) Keys[K, V] {
	return Keys[K, V]{src: src}
}

// ValuesOf returns a value view backed by src. A nil equal uses Equal[V].
func ValuesOf[K comparable, V any](src Source[K, V], equal func(a, b V) bool) Values[K, V] {
	if equal == nil {
		equal = Equal[V]
	}
	return Values[K, V]{src: src, equal: equal}
}

// EntriesOf returns an entry view backed by src. A nil equal uses Equal[V].
func EntriesOf[K comparable, V any](src Source[K, V], equal func(a, b V) bool) Entries[K, V] {
	if equal == nil {
		equal = Equal[V]
	}
	return Entries[K, V]{src: src, equal: equal}
}

func (v Keys[K, V]) Len() int          { return v.src.Len() }
func (v Keys[K, V]) Contains(k K) bool { return v.src.ContainsKey(k) }
func (v Keys[K, V]) All() iter.Seq[K]  { return keysOnly(v.src.All()) }
func (v Keys[K, V]) Collect() []K      { return collect(v.All(), v.Len()) }

func (v Keys[K, V]) Remove(k K) bool {
	_, ok := v.src.Remove(k)
	return ok
}

func (v Keys[K, V]) RemoveFunc(pred func(K) bool) int {
	return removeMatching(v.src, func(k K, _ V) bool { return pred(k) })
}

func (v Values[K, V]) Len() int          { return v.src.Len() }
func (v Values[K, V]) Contains(x V) bool { return v.src.ContainsValue(x) }
func (v Values[K, V]) All() iter.Seq[V]  { return valuesOnly(v.src.All()) }
func (v Values[K, V]) Collect() []V      { return collect(v.All(), v.Len()) }

// Remove deletes one entry whose value equals x.
func (v Values[K, V]) Remove(x V) bool {
	for k, cur := range v.src.All() {
		if v.equal(cur, x) && v.src.RemoveIf(k, cur) {
			return true
		}
	}
	return false
}

func (v Values[K, V]) RemoveFunc(pred func(V) bool) int {
	return removeMatching(v.src, func(_ K, x V) bool { return pred(x) })
}

func (v Entries[K, V]) Len() int             { return v.src.Len() }
func (v Entries[K, V]) All() iter.Seq2[K, V] { return v.src.All() }

func (v Entries[K, V]) Collect() []Entry[K, V] {
	out := make([]Entry[K, V], 0, v.Len())
	for k, x := range v.src.All() {
		out = append(out, Entry[K, V]{Key: k, Value: x})
	}
	return out
}

// Contains reports whether e.Key is present and maps to e.Value.
func (v Entries[K, V]) Contains(e Entry[K, V]) bool {
	cur, ok := v.src.Peek(e.Key)
	return ok && v.equal(cur, e.Value)
}

// Remove deletes e.Key only if it maps to e.Value.
func (v Entries[K, V]) Remove(e Entry[K, V]) bool { return v.src.RemoveIf(e.Key, e.Value) }

func (v Entries[K, V]) RemoveFunc(pred func(K, V) bool) int {
	return removeMatching(v.src, pred)
}

// removeMatching snapshots matching entries first, then removes each one
// only if it still holds the observed value.
func removeMatching[K comparable, V any](src Source[K, V], pred func(K, V) bool) int {
	var victims []Entry[K, V]
	for k, x := range src.All() {
		if pred(k, x) {
			victims = append(victims, Entry[K, V]{Key: k, Value: x})
		}
	}
	n := 0
	for _, e := range victims {
		if src.RemoveIf(e.Key, e.Value) {
			n++
		}
	}
	return n
}

func keysOnly[K, V any](seq iter.Seq2[K, V]) iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range seq {
			if !yield(k) {
				return
			}
		}
	}
}

func valuesOnly[K, V any](seq iter.Seq2[K, V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range seq {
			if !yield(v) {
				return
			}
		}
	}
}

func collect[T any](seq iter.Seq[T], hint int) []T {
	out := make([]T, 0, hint)
	for x := range seq {
		out = append(out, x)
	}
	return out
}
