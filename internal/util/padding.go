// Package util contains internal helpers shared by the cache core.
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for modern CPUs; the runtime's own
// constant is unexported.
const CacheLineSize = 64

// CacheLinePad separates groups of hot fields into distinct cache lines to
// reduce false sharing.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 is an atomic uint64 padded to exactly one cache line.
// Used for the hit/miss/eviction counters, which are bumped outside the
// main lock.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Compile-time size check: must be exactly one cache line.
var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
