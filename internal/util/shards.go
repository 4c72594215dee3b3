package util

import "runtime"

// MaxShards caps every shard count, requested or automatic.
const MaxShards = 256

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism. Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..MaxShards].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	return ShardCount(p * 2)
}

// ShardCount normalizes a requested shard count: n <= 0 selects
// ReasonableShardCount, anything else is rounded up to a power of two and
// clamped to MaxShards.
func ShardCount(n int) int {
	switch {
	case n <= 0:
		return ReasonableShardCount()
	case n >= MaxShards:
		return MaxShards
	}
	return int(NextPow2(uint64(n)))
}

// ShardIndex maps a 64-bit hash to a shard index.
// Power-of-two shard counts take the mask path; others fall back to modulo.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
