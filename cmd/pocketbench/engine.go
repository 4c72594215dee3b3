package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IvanBrykalov/pocketcache/cache"
	"github.com/IvanBrykalov/pocketcache/computing"
	"github.com/IvanBrykalov/pocketcache/recency"
	"github.com/IvanBrykalov/pocketcache/soft"
	"github.com/IvanBrykalov/pocketcache/tiered"
)

// engine is what the workload drives: a lookup, a write, and the
// management surface exported to Prometheus.
type engine interface {
	get(ctx context.Context, k string) (string, bool, error)
	put(k, v string)
	cache.Managed
}

// loading is the lookup shape shared by the read-through engines.
type loading interface {
	Get(ctx context.Context, k string) (string, bool, error)
	Put(k, v string) (string, bool)
	cache.Managed
}

type loadingEngine struct{ loading }

func (e loadingEngine) get(ctx context.Context, k string) (string, bool, error) {
	return e.Get(ctx, k)
}

func (e loadingEngine) put(k, v string) { e.Put(k, v) }

// lockedRecency serializes a recency.Cache, which is not safe for
// concurrent use on its own.
type lockedRecency struct {
	mu sync.Mutex
	c  *recency.Cache[string, string]
}

func (e *lockedRecency) get(_ context.Context, k string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.c.Get(k)
	return v, ok, nil
}

func (e *lockedRecency) put(k, v string) {
	e.mu.Lock()
	e.c.Put(k, v)
	e.mu.Unlock()
}

func (e *lockedRecency) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Len()
}

func (e *lockedRecency) Stats() cache.Stats { return e.c.Stats() }

func (e *lockedRecency) Clear() {
	e.mu.Lock()
	e.c.Clear()
	e.mu.Unlock()
}

func (e *lockedRecency) Evict() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Evict()
}

// syntheticLoader derives the value from the key after an optional delay.
func syntheticLoader(delay time.Duration) cache.LoaderFunc[string, string] {
	return func(ctx context.Context, k string) (string, bool, error) {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
		}
		return "v:" + k, true, nil
	}
}

func newBacking(cfg Config) (computing.Backing[string, string], error) {
	switch cfg.Backing {
	case "sync":
		return computing.NewSyncMap[string, string](), nil
	case "sharded":
		return computing.NewShardedMap[string, string](cfg.Shards, nil), nil
	case "otter":
		return computing.NewOtterMap[string, string](cfg.Capacity, nil)
	case "sieve":
		return computing.NewSieveMap[string, string](cfg.Capacity, nil)
	default:
		return nil, fmt.Errorf("unknown backing %q (use sync, sharded, otter or sieve)", cfg.Backing)
	}
}

// newEngine builds the engine named by cfg.Engine with m as its event sink.
func newEngine(cfg Config, m cache.Metrics) (engine, error) {
	delay, err := cfg.loadDelay()
	if err != nil {
		return nil, err
	}
	loader := syntheticLoader(delay)

	switch cfg.Engine {
	case "recency":
		c, err := recency.New[string, string](recency.Options[string, string]{
			Capacity: cfg.Capacity,
			Metrics:  m,
		})
		if err != nil {
			return nil, err
		}
		return &lockedRecency{c: c}, nil
	case "computing":
		b, err := newBacking(cfg)
		if err != nil {
			return nil, err
		}
		c, err := computing.New[string, string](b, loader, computing.Options[string, string]{Metrics: m})
		if err != nil {
			return nil, err
		}
		return loadingEngine{c}, nil
	case "soft":
		c, err := soft.New[string, string](loader, soft.Options[string]{
			Generations: cfg.Generations,
			Metrics:     m,
		})
		if err != nil {
			return nil, err
		}
		return loadingEngine{c}, nil
	case "tiered":
		c, err := tiered.New[string, string](loader, tiered.Options[string]{
			Capacity:    cfg.Capacity,
			Generations: cfg.Generations,
			Metrics:     m,
		})
		if err != nil {
			return nil, err
		}
		return loadingEngine{c}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (use recency, computing, soft or tiered)", cfg.Engine)
	}
}
