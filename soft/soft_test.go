package soft

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// manualHolder is cleared only when the test says so.
type manualHolder[V any] struct {
	v        V
	cleared  atomic.Bool
	weakened atomic.Bool
}

func (h *manualHolder[V]) Get() (V, bool) {
	if h.cleared.Load() {
		var zero V
		return zero, false
	}
	return h.v, true
}

func (h *manualHolder[V]) Cleared() bool { return h.cleared.Load() }
func (h *manualHolder[V]) Weaken()       { h.weakened.Store(true) }

// holderLog records every holder a cache creates, by value.
type holderLog[V comparable] struct {
	mu  sync.Mutex
	all []*manualHolder[V]
}

func (l *holderLog[V]) factory(v V) Holder[V] {
	h := &manualHolder[V]{v: v}
	l.mu.Lock()
	l.all = append(l.all, h)
	l.mu.Unlock()
	return h
}

// clear marks every holder of v as reclaimed.
func (l *holderLog[V]) clear(v V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.all {
		if h.v == v {
			h.cleared.Store(true)
		}
	}
}

type recorder struct {
	calls atomic.Int64
}

func (r *recorder) loader() cache.LoaderFunc[string, string] {
	return func(_ context.Context, k string) (string, bool, error) {
		r.calls.Add(1)
		return "loaded:" + k, true, nil
	}
}

func newManual(t *testing.T, r *recorder) (*Cache[string, string], *holderLog[string]) {
	t.Helper()
	log := &holderLog[string]{}
	c, err := New[string, string](r.loader(), Options[string]{Holders: log.factory})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, log
}

func mustPanic(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, want) {
			t.Fatalf("want panic %v, got %v", want, r)
		}
	}()
	fn()
}

func TestNew_RejectsNilLoader(t *testing.T) {
	t.Parallel()

	if _, err := New[string, string](nil, Options[string]{}); !errors.Is(err, cache.ErrNilLoader) {
		t.Fatalf("want ErrNilLoader, got %v", err)
	}
}

func TestCache_GetLoadsOnceAndMemoizes(t *testing.T) {
	t.Parallel()

	var r recorder
	c, _ := newManual(t, &r)
	ctx := context.Background()

	for range 3 {
		v, ok, err := c.Get(ctx, "a")
		if err != nil || !ok || v != "loaded:a" {
			t.Fatalf("Get = %q, %v, %v", v, ok, err)
		}
	}
	if r.calls.Load() != 1 {
		t.Fatalf("loader calls = %d, want 1", r.calls.Load())
	}
	if s := c.Stats(); s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

// A demoted entry is served without consulting the loader.
func TestCache_EvictedBypassesLoader(t *testing.T) {
	t.Parallel()

	var r recorder
	c, _ := newManual(t, &r)

	c.Evicted(cache.Entry[string, string]{Key: "k", Value: "front"})
	v, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok || v != "front" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if r.calls.Load() != 0 {
		t.Fatalf("loader called %d times", r.calls.Load())
	}
}

func TestCache_ClearThenGetReloads(t *testing.T) {
	t.Parallel()

	var r recorder
	c, _ := newManual(t, &r)
	ctx := context.Background()

	c.Put("k", "stale")
	c.Clear()
	if !c.IsEmpty() {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
	v, _, _ := c.Get(ctx, "k")
	if v != "loaded:k" || r.calls.Load() != 1 {
		t.Fatalf("got %q after %d loads", v, r.calls.Load())
	}
}

// Once a holder is reclaimed the key reads as absent everywhere and the
// next Get reloads.
func TestCache_ClearedHolderIsAbsent(t *testing.T) {
	t.Parallel()

	var r recorder
	c, log := newManual(t, &r)
	ctx := context.Background()

	c.Put("k", "v1")
	c.Put("other", "v2")
	log.clear("v1")

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if c.ContainsKey("k") || c.ContainsValue("v1") {
		t.Fatal("cleared entry must not be visible")
	}
	for k := range c.All() {
		if k == "k" {
			t.Fatal("All yielded a cleared entry")
		}
	}
	if _, ok := c.Replace("k", "x"); ok {
		t.Fatal("Replace must treat a cleared holder as absent")
	}

	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || v != "loaded:k" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if r.calls.Load() != 1 {
		t.Fatalf("loader calls = %d, want 1", r.calls.Load())
	}
}

func TestCache_PutIfAbsentTakesClearedSlot(t *testing.T) {
	t.Parallel()

	var r recorder
	c, log := newManual(t, &r)

	c.Put("k", "old")
	if cur, ok := c.PutIfAbsent("k", "new"); !ok || cur != "old" {
		t.Fatalf("PutIfAbsent on live key = %q, %v", cur, ok)
	}
	log.clear("old")
	if _, ok := c.PutIfAbsent("k", "new"); ok {
		t.Fatal("PutIfAbsent must succeed over a cleared holder")
	}
	if v, _ := c.Peek("k"); v != "new" {
		t.Fatalf("Peek = %q", v)
	}
}

func TestCache_ConditionalOps(t *testing.T) {
	t.Parallel()

	var r recorder
	c, _ := newManual(t, &r)

	if prev, ok := c.Put("k", "a"); ok || prev != "" {
		t.Fatalf("first Put = %q, %v", prev, ok)
	}
	if prev, ok := c.Put("k", "b"); !ok || prev != "a" {
		t.Fatalf("second Put = %q, %v", prev, ok)
	}
	if c.ReplaceIf("k", "a", "c") {
		t.Fatal("ReplaceIf with stale old value must fail")
	}
	if !c.ReplaceIf("k", "b", "c") {
		t.Fatal("ReplaceIf with current value must succeed")
	}
	if c.RemoveIf("k", "b") {
		t.Fatal("RemoveIf with stale value must fail")
	}
	if !c.RemoveIf("k", "c") {
		t.Fatal("RemoveIf with current value must succeed")
	}
	if _, ok := c.Remove("k"); ok {
		t.Fatal("Remove of absent key must report false")
	}
}

func TestCache_LoaderErrorAndNoValue(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	loader := cache.LoaderFunc[string, string](func(_ context.Context, k string) (string, bool, error) {
		switch k {
		case "err":
			return "", false, errBoom
		default:
			return "", false, nil
		}
	})
	c, err := New[string, string](loader, Options[string]{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, _, err := c.Get(ctx, "err"); err != errBoom {
		t.Fatalf("want errBoom as-is, got %v", err)
	}
	if _, ok, err := c.Get(ctx, "none"); ok || err != nil {
		t.Fatalf("no-value Get = %v, %v", ok, err)
	}
	if c.Len() != 0 {
		t.Fatalf("nothing must be stored, Len = %d", c.Len())
	}
}

// Not parallel: other tests force collections, and the background sweep
// may purge first.
func TestCache_EvictWeakensAndPurge(t *testing.T) {
	var r recorder
	c, log := newManual(t, &r)

	c.Put("a", "1")
	c.Put("b", "2")
	log.clear("1")

	if n := c.Evict(); n > 1 {
		t.Fatalf("Evict purged %d, want at most 1", n)
	}
	if c.ContainsKey("a") || !c.ContainsKey("b") {
		t.Fatal("only the reclaimed entry must be gone")
	}
	log.mu.Lock()
	for _, h := range log.all {
		if !h.weakened.Load() {
			t.Errorf("holder %q not weakened", h.v)
		}
	}
	log.mu.Unlock()
	if n := c.Purge(); n != 0 {
		t.Fatalf("second Purge = %d, want 0", n)
	}
}

// sweep weakens only holders idle for the configured number of generations.
func TestCache_SweepWeakensIdleHolders(t *testing.T) {
	log := &holderLog[string]{}
	c, err := New[string, string](new(recorder).loader(), Options[string]{
		Generations: 2,
		Holders:     log.factory,
	})
	if err != nil {
		t.Fatal(err)
	}

	c.Put("idle", "i")
	c.Put("hot", "h")
	c.gen.Add(5)
	c.Lookup("hot")
	c.sweep()

	log.mu.Lock()
	defer log.mu.Unlock()
	for _, h := range log.all {
		switch h.v {
		case "i":
			if !h.weakened.Load() {
				t.Error("idle holder must be weakened")
			}
		case "h":
			if h.weakened.Load() {
				t.Error("recently touched holder must stay strong")
			}
		}
	}
}

type blob struct{ b [64]byte }

func TestWeakHolder_GetRestrengthens(t *testing.T) {
	t.Parallel()

	h := NewWeakHolder(blob{b: [64]byte{1}})
	h.Weaken()
	// No collection in between: the box is still reachable weakly, and
	// Get pins it again.
	got, ok := h.Get()
	if !ok || got.b[0] != 1 {
		t.Skip("collector ran between Weaken and Get")
	}
	runtime.GC()
	if h.Cleared() {
		t.Fatal("re-strengthened holder must survive a collection")
	}
}

func TestWeakHolder_ClearedAfterCollection(t *testing.T) {
	// Not parallel: relies on a full collection reclaiming an
	// unreferenced box.
	h := NewWeakHolder(blob{})
	h.Weaken()
	for range 3 {
		runtime.GC()
	}
	if !h.Cleared() {
		t.Fatal("weakened, unreferenced value must be reclaimed")
	}
	if _, ok := h.Get(); ok {
		t.Fatal("Get on a cleared holder must report false")
	}
}

func TestCache_NilArgumentsPanic(t *testing.T) {
	t.Parallel()

	c, err := New[*string, *blob](cache.LoaderFunc[*string, *blob](func(context.Context, *string) (*blob, bool, error) {
		return nil, true, nil
	}), Options[*blob]{})
	if err != nil {
		t.Fatal(err)
	}
	key := new(string)

	mustPanic(t, cache.ErrNilKey, func() { c.Get(context.Background(), nil) })
	mustPanic(t, cache.ErrNilKey, func() { c.Peek(nil) })
	mustPanic(t, cache.ErrNilValue, func() { c.Put(key, nil) })
	mustPanic(t, cache.ErrNilValue, func() { c.Evicted(cache.Entry[*string, *blob]{Key: key}) })

	// A nil value from the loader is treated as no value.
	if _, ok, err := c.Get(context.Background(), key); ok || err != nil {
		t.Fatalf("nil loader value: ok=%v err=%v", ok, err)
	}
	if c.Len() != 0 {
		t.Fatal("nil loader value must not be stored")
	}
}

func TestCache_Views(t *testing.T) {
	t.Parallel()

	var r recorder
	c, _ := newManual(t, &r)
	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, "v-"+k)
	}

	if !c.Keys().Contains("a") || c.Keys().Len() != 3 {
		t.Fatal("key view out of sync")
	}
	if !c.Values().Remove("v-b") || c.ContainsKey("b") {
		t.Fatal("value view removal must propagate")
	}
	if !c.Entries().Contains(cache.Entry[string, string]{Key: "c", Value: "v-c"}) {
		t.Fatal("entry view must see c")
	}
	if n := c.Keys().RemoveFunc(func(string) bool { return true }); n != 2 {
		t.Fatalf("RemoveFunc removed %d, want 2", n)
	}
	if !c.IsEmpty() {
		t.Fatal("cache must be empty")
	}
}

func TestCache_ConcurrentGet(t *testing.T) {
	t.Parallel()

	var r recorder
	c, err := New[string, string](r.loader(), Options[string]{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	keys := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				k := keys[(g+i)%len(keys)]
				if v, ok, err := c.Get(ctx, k); err != nil || !ok || v != "loaded:"+k {
					t.Errorf("Get(%q) = %q, %v, %v", k, v, ok, err)
					return
				}
				if i%97 == 0 {
					runtime.GC()
				}
			}
		}()
	}
	wg.Wait()
}

type sizeLog struct {
	cache.NoopMetrics
	mu   sync.Mutex
	last int
	n    int
}

func (l *sizeLog) Size(n int) {
	l.mu.Lock()
	l.last, l.n = n, l.n+1
	l.mu.Unlock()
}

func (l *sizeLog) get() (last, reports int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.n
}

func TestCache_ReportsSizeOnEveryMutation(t *testing.T) {
	t.Parallel()

	log := &holderLog[string]{}
	sizes := &sizeLog{}
	c, err := New[string, string](new(recorder).loader(), Options[string]{Holders: log.factory, Metrics: sizes})
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		op   func()
		want int
	}{
		{"get", func() { c.Get(context.Background(), "a") }, 1},
		{"put", func() { c.Put("b", "2") }, 2},
		{"evicted", func() { c.Evicted(cache.Entry[string, string]{Key: "c", Value: "3"}) }, 3},
		{"overwrite", func() { c.Put("b", "2b") }, 3},
		{"remove", func() { c.Remove("b") }, 2},
		{"reclaim", func() { log.clear("3"); c.Purge() }, 1},
		{"put-if-absent", func() { c.PutIfAbsent("d", "4") }, 2},
		{"remove-if", func() { c.RemoveIf("d", "4") }, 1},
	}
	for _, st := range steps {
		st.op()
		if last, n := sizes.get(); last != st.want || n == 0 {
			t.Fatalf("after %s: last Size = %d (%d reports), want %d", st.name, last, n, st.want)
		}
	}
	c.Clear()
	if last, _ := sizes.get(); last != 0 {
		t.Fatalf("Size after Clear = %d", last)
	}
}
