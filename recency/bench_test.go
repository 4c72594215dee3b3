package recency

import (
	"math/rand"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// The cache is single-writer, so the benchmark runs sequentially.
func benchmarkMix(b *testing.B, readsPct int) {
	c, err := New[int, int](Options[int, int]{Capacity: 100_000})
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 50_000; i++ {
		c.Put(i, i)
	}

	r := rand.New(rand.NewSource(1))
	keyMask := (1 << 17) - 1

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := r.Int() & keyMask
		if r.Intn(100) < readsPct {
			c.Get(k)
		} else {
			c.Put(k, i)
		}
	}
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }
