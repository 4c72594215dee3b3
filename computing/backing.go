package computing

// Backing is the thread-safe map a Map memoizes into. Every method must be
// safe for concurrent use; LoadOrStore must be atomic, since it is the
// publish step of the loose race.
type Backing[K comparable, V any] interface {
	Load(k K) (V, bool)
	Store(k K, v V)
	// LoadOrStore returns the existing value if present (loaded == true);
	// otherwise it stores v and returns it.
	LoadOrStore(k K, v V) (actual V, loaded bool)
	// Swap stores v and returns the previous value, if any.
	Swap(k K, v V) (previous V, loaded bool)
	LoadAndDelete(k K) (V, bool)
	// CompareAndSwap stores newV only if k currently maps to oldV.
	CompareAndSwap(k K, oldV, newV V) bool
	// CompareAndDelete deletes k only if it currently maps to v.
	CompareAndDelete(k K, v V) bool
	// Replace stores v only if k is present and returns the previous value.
	Replace(k K, v V) (previous V, ok bool)
	// Range calls f for each entry until f returns false. Deleting from
	// the map inside f must be allowed.
	Range(f func(k K, v V) bool)
	Len() int
	Clear()
}
