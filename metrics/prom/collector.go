package prom

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// Collector exposes the counters of named cache.Managed instances. Values
// are read at scrape time, so a registered cache needs no Metrics hook.
//
// Register it once; Add and Remove may be called at any time afterwards.
// Len and Stats of every added instance are called from the scrape
// goroutine, so an unsynchronized cache must be wrapped by its owner.
type Collector struct {
	mu     sync.RWMutex
	caches map[string]cache.Managed

	size   *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc
	ratio  *prometheus.Desc
}

// NewCollector builds an unregistered Collector. Every series carries a
// "cache" label holding the name passed to Add.
func NewCollector(ns, sub string) *Collector {
	name := func(n string) string { return prometheus.BuildFQName(ns, sub, n) }
	labels := []string{"cache"}
	return &Collector{
		caches: make(map[string]cache.Managed),
		size:   prometheus.NewDesc(name("size_entries"), "Number of resident entries", labels, nil),
		hits:   prometheus.NewDesc(name("hits_total"), "Cache hits", labels, nil),
		misses: prometheus.NewDesc(name("misses_total"), "Cache misses", labels, nil),
		ratio:  prometheus.NewDesc(name("hit_ratio"), "Hits over lookups since start", labels, nil),
	}
}

// Add registers c under name. Names must be unique.
func (col *Collector) Add(name string, c cache.Managed) error {
	col.mu.Lock()
	defer col.mu.Unlock()
	if _, dup := col.caches[name]; dup {
		return fmt.Errorf("prom: cache %q already registered", name)
	}
	col.caches[name] = c
	return nil
}

// Remove unregisters name and reports whether it was present.
func (col *Collector) Remove(name string) bool {
	col.mu.Lock()
	defer col.mu.Unlock()
	_, ok := col.caches[name]
	delete(col.caches, name)
	return ok
}

// Get returns the instance registered under name.
func (col *Collector) Get(name string) (cache.Managed, bool) {
	col.mu.RLock()
	defer col.mu.RUnlock()
	c, ok := col.caches[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (col *Collector) Names() []string {
	col.mu.RLock()
	out := make([]string, 0, len(col.caches))
	for n := range col.caches {
		out = append(out, n)
	}
	col.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.size
	ch <- col.hits
	ch <- col.misses
	ch <- col.ratio
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	col.mu.RLock()
	defer col.mu.RUnlock()
	for name, c := range col.caches {
		s := c.Stats()
		ch <- prometheus.MustNewConstMetric(col.size, prometheus.GaugeValue, float64(c.Len()), name)
		ch <- prometheus.MustNewConstMetric(col.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(col.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(col.ratio, prometheus.GaugeValue, s.HitRatio(), name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
