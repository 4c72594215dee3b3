package tiered

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/powerman/check"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pocketcache/cache"
)

func TestMain(m *testing.M) { check.TestMain(m) }

type countingLoader struct {
	calls atomic.Int64
}

func (l *countingLoader) Load(_ context.Context, k int) (string, bool, error) {
	l.calls.Add(1)
	if k < 0 {
		return "", false, nil
	}
	return "v" + strconv.Itoa(k), true, nil
}

// newTiered keeps back-tier holders strong for the length of a test.
func newTiered(t *check.C, loader cache.Loader[int, string], capacity int) *Cache[int, string] {
	t.Helper()
	c, err := New[int, string](loader, Options[string]{Capacity: capacity, Generations: 1 << 20})
	t.Nil(err)
	t.Must(c != nil)
	return c
}

func TestNew_Validation(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	_, err := New[int, string](nil, Options[string]{Capacity: 1})
	t.Err(err, cache.ErrNilLoader)

	_, err = New[int, string](&countingLoader{}, Options[string]{})
	t.True(errors.Is(err, cache.ErrInvalidCapacity))
}

func TestCache_ReadThrough(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	var l countingLoader
	c := newTiered(t, &l, 4)
	ctx := context.Background()

	v, ok, err := c.Get(ctx, 1)
	t.Nil(err)
	t.True(ok)
	t.Equal(v, "v1")

	v, _, _ = c.Get(ctx, 1)
	t.Equal(v, "v1")
	t.Equal(l.calls.Load(), int64(1))
	t.Equal(c.Stats(), cache.Stats{Hits: 1, Misses: 1})

	_, ok, err = c.Get(ctx, -1)
	t.Nil(err)
	t.False(ok)
	t.Equal(c.Len(), 1)
}

// An entry pushed out of the front is served by the back tier without a
// Loader call, and is promoted again.
func TestCache_DemotedEntryServedFromBack(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	var l countingLoader
	c := newTiered(t, &l, 2)
	ctx := context.Background()

	for k := 1; k <= 3; k++ {
		_, _, err := c.Get(ctx, k)
		t.Nil(err)
	}
	t.Equal(l.calls.Load(), int64(3))
	t.Equal(c.FrontLen(), 2)
	t.Equal(c.Len(), 3)

	v, ok, err := c.Get(ctx, 1)
	t.Nil(err)
	t.True(ok)
	t.Equal(v, "v1")
	t.Equal(l.calls.Load(), int64(3), "demoted entry must not be reloaded")
	t.Equal(c.FrontLen(), 2)
	t.Equal(c.Len(), 3, "promotion moves the entry, it does not copy it")
}

func TestCache_EvictDemotes(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	var l countingLoader
	c := newTiered(t, &l, 4)
	c.Put(1, "a")
	c.Put(2, "b")

	t.Equal(c.Evict(), 1)
	t.Equal(c.FrontLen(), 1)
	v, ok := c.Peek(1)
	t.True(ok)
	t.Equal(v, "a")

	c.Clear()
	t.Zero(c.Len())
	t.Equal(c.Evict(), 0)
}

func TestCache_PutAndRemoveSpanTiers(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	c := newTiered(t, &countingLoader{}, 1)
	c.Put(1, "a")
	c.Put(2, "b") // demotes 1

	prev, ok := c.Put(1, "a2")
	t.True(ok)
	t.Equal(prev, "a")
	t.Equal(c.Len(), 2)

	v, ok := c.Remove(2)
	t.True(ok)
	t.Equal(v, "b")
	_, ok = c.Peek(2)
	t.False(ok)
}

func TestCache_LoaderErrorIsReturnedAsIs(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	errBoom := errors.New("boom")
	c := newTiered(t, cache.LoaderFunc[int, string](func(context.Context, int) (string, bool, error) {
		return "", false, errBoom
	}), 2)

	_, ok, err := c.Get(context.Background(), 7)
	t.False(ok)
	t.Equal(err, errBoom)
	t.Zero(c.Len())
}

// Concurrent misses on one key share a single Loader call.
func TestCache_CoalescesConcurrentMisses(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	var calls atomic.Int64
	gate := make(chan struct{})
	c := newTiered(t, cache.LoaderFunc[int, string](func(context.Context, int) (string, bool, error) {
		calls.Add(1)
		<-gate
		return "shared", true, nil
	}), 8)

	const n = 16
	var eg errgroup.Group
	for range n {
		eg.Go(func() error {
			v, ok, err := c.Get(context.Background(), 42)
			if err != nil || !ok || v != "shared" {
				return errors.New("unexpected result " + v)
			}
			return nil
		})
	}
	deadline := time.Now().Add(2 * time.Second)
	for c.group.Waiting(42) < n-1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(gate)

	t.Nil(eg.Wait())
	t.Equal(calls.Load(), int64(1))
}

func TestCache_NilKeyPanics(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	c, err := New[*int, string](cache.LoaderFunc[*int, string](func(context.Context, *int) (string, bool, error) {
		return "", false, nil
	}), Options[string]{Capacity: 2})
	t.Nil(err)

	t.PanicMatch(func() { c.Get(context.Background(), nil) }, cache.ErrNilKey.Error())
	t.PanicMatch(func() { c.Put(nil, "x") }, cache.ErrNilKey.Error())
}

// A completed Put is never lost, even when a demotion of the same key races
// with it.
func TestCache_PutSurvivesConcurrentDemotion(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	c := newTiered(t, &countingLoader{}, 1)
	for round := range 2000 {
		var eg errgroup.Group
		eg.Go(func() error {
			c.Put(1, "v"+strconv.Itoa(round))
			return nil
		})
		eg.Go(func() error {
			c.Put(2, "x")
			c.Evict()
			return nil
		})
		t.Nil(eg.Wait())

		v, ok := c.Peek(1)
		t.Must(t.True(ok, "key 1 lost in round", round))
		t.Equal(v, "v"+strconv.Itoa(round))
		c.Remove(1)
	}
}

func TestCache_SizeCountsBothTiers(tt *testing.T) {
	t := check.T(tt)
	t.Parallel()

	var sizes sizeLog
	c, err := New[int, string](&countingLoader{}, Options[string]{Capacity: 1, Generations: 1 << 20, Metrics: &sizes})
	t.Nil(err)

	c.Put(1, "a")
	c.Put(2, "b") // demotes 1
	t.Equal(sizes.last.Load(), int64(2))
	t.Equal(c.Len(), 2)

	_, _, err = c.Get(context.Background(), 1) // promotes 1, demotes 2
	t.Nil(err)
	t.Equal(sizes.last.Load(), int64(2))

	c.Remove(2)
	t.Equal(sizes.last.Load(), int64(1))
	c.Clear()
	t.Zero(sizes.last.Load())
}

type sizeLog struct {
	cache.NoopMetrics
	last atomic.Int64
}

func (l *sizeLog) Size(n int) { l.last.Store(int64(n)) }
