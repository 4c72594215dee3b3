package cache

import "github.com/IvanBrykalov/pocketcache/internal/util"

// EvictReason explains why an entry left a cache without an explicit Remove.
type EvictReason int

const (
	// EvictCapacity: removed to restore the capacity bound (LRU victim).
	EvictCapacity EvictReason = iota
	// EvictManual: removed by an explicit Evict() call.
	EvictManual
	// EvictReclaimed: the value was reclaimed by the garbage collector.
	EvictReclaimed
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictManual:
		return "manual"
	case EvictReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int)          {}

var _ Metrics = NoopMetrics{}

// OrNoop returns m, or NoopMetrics if m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}

// Stats is a point-in-time snapshot of lookup counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// HitRatio returns Hits/(Hits+Misses), or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Counters are hit/miss counters padded onto separate cache lines.
// They are safe for concurrent use even when the owning cache is not.
type Counters struct {
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

func (c *Counters) Hit()  { c.hits.Add(1) }
func (c *Counters) Miss() { c.misses.Add(1) }

// Snapshot reads both counters.
func (c *Counters) Snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
