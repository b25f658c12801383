package cache

import (
	"context"
	"time"

	"github.com/medicamenta/tiercache/priority"
)

// Cache is a bounded, priority-tiered in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// The cache never returns errors from its data-path operations: capacity
// pressure is resolved by eviction and persistence failures are logged.
// Callers must treat a miss as "not cached" regardless of the cause.
type Cache[V any] interface {
	// Set inserts or replaces key at Normal priority with no TTL.
	Set(key string, v V)

	// SetWithTTL inserts or replaces key at Normal priority with a relative
	// TTL. A non-positive ttl disables expiration for this entry.
	SetWithTTL(key string, v V, ttl time.Duration)

	// SetWithPriority inserts or replaces key in the given tier. Critical
	// and High entries are part of the durable snapshot and survive a
	// restart when a store is configured.
	SetWithPriority(key string, v V, ttl time.Duration, p priority.Priority)

	// Add inserts key only if absent (Normal priority, no TTL).
	// Returns false if the key already exists; no update is performed.
	Add(key string, v V) bool

	// Get returns the value for key and a presence flag, counting a hit or
	// a miss. An expired entry is removed and reported as a miss. On hit
	// the entry's access stats are updated and it is promoted to MRU
	// within its tier.
	Get(key string) (V, bool)

	// GetOrLoad returns the value for key, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, key string) (V, error)

	// Has reports whether key is present and unexpired. Expired entries are
	// removed lazily, but Has never touches hit/miss counters or access
	// stats.
	Has(key string) bool

	// Delete removes key if present and returns whether anything was removed.
	Delete(key string) bool

	// Clear removes all entries. Cumulative hit/miss/eviction counters are
	// untouched.
	Clear()

	// ClearByPriority removes every entry in the given tier and returns how
	// many were removed.
	ClearByPriority(p priority.Priority) int

	// ClearExpired removes every entry whose TTL has passed and returns how
	// many were removed. A no-op sweep performs no persistence write.
	ClearExpired() int

	// Keys returns all current keys in no particular order.
	Keys() []string

	// Metadata returns everything about an entry except its payload.
	// Expired entries are removed lazily and reported as absent.
	Metadata(key string) (Metadata, bool)

	// MostUsed returns entries sorted by tier (critical first) and then by
	// access count descending, truncated to limit. A non-positive limit
	// defaults to 10.
	MostUsed(limit int) []Usage

	// Stats returns a snapshot of the cache's counters.
	Stats() Stats

	// Config returns a snapshot of the live configuration.
	Config() Config

	// UpdateConfig merges the patch into the live config, persists the
	// result, enforces the (possibly shrunk) bounds, and restarts the
	// cleanup sweep if its settings changed.
	UpdateConfig(p ConfigPatch)

	// Len returns the number of resident entries.
	Len() int

	// Close stops the cleanup sweep and the persistence writer, flushing a
	// final snapshot. Subsequent operations are no-ops.
	Close() error
}

// Stats is a point-in-time view of the cache's counters. Hits, Misses and
// Evictions are cumulative for the process lifetime; Entries and Size track
// the resident set.
type Stats struct {
	Entries   int
	Size      int64
	Hits      uint64
	Misses    uint64
	Evictions uint64

	// HitRate is Hits/(Hits+Misses) as a percentage rounded to two
	// decimals; 0 before the first Get.
	HitRate float64
}
