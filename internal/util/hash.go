// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "hash/maphash"

// Hasher hashes any comparable key with a per-instance random seed.
// Unlike a fixed FNV table it accepts every comparable type, including
// structs and arrays, and is safe for concurrent use.
type Hasher[K comparable] struct {
	seed maphash.Seed
}

// NewHasher returns a Hasher with a fresh random seed.
func NewHasher[K comparable]() Hasher[K] {
	return Hasher[K]{seed: maphash.MakeSeed()}
}

// Sum64 returns the 64-bit hash of k.
func (h Hasher[K]) Sum64(k K) uint64 {
	return maphash.Comparable(h.seed, k)
}
