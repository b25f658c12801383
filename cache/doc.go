// Package cache provides a bounded, priority-tiered in-memory key/value
// cache with per-entry TTL, access statistics, periodic expiry sweeping,
// and best-effort persistence of its critical/high tiers to a pluggable
// durable store.
//
// # Design
//
//   - Tiers: every entry belongs to one of four priorities
//     (critical > high > normal > low). Each tier keeps its own intrusive
//     MRU↔LRU doubly linked list; a single map covers all tiers. When an
//     insert would exceed MaxSize (payload bytes) or MaxEntries, entries
//     are evicted walking tiers from low to critical and taking each
//     tier's LRU tail first, so critical data goes only as a last resort.
//
//   - Concurrency: one RWMutex guards the map, the tier lists, and the
//     byte accounting. Eviction needs a global view across tiers and
//     recency, which rules out sharding; every public method runs to
//     completion under the lock.
//
//   - Sizing: an entry's size is the byte length of its JSON form,
//     measured once at insertion. An approximation, but deterministic and
//     monotonic with payload complexity. An entry whose size alone exceeds
//     MaxSize is refused (logged, never an error).
//
//   - TTL: entries may carry an absolute deadline (UnixNano). Expiration
//     is enforced lazily by Get/Has/Metadata and eagerly by a periodic
//     sweep when AutoCleanup is on; both paths use the same test.
//
//   - Persistence: after every structural mutation the critical/high
//     subset is re-serialized and written to the configured store under a
//     fixed key, on a dedicated writer goroutine (callers never wait on
//     storage I/O). The live Config is persisted under a second key. On
//     construction both are loaded back: persisted config overrides
//     defaults, already-expired entries are dropped, and corrupt or
//     version-mismatched payloads fall back to an empty cache and default
//     config. Normal/low entries are cache-only and do not survive a
//     restart.
//
//   - Failure policy: no public operation returns an error (GetOrLoad
//     aside, which surfaces loader errors). Capacity pressure, storage
//     failures, and malformed persisted data are absorbed and logged; a
//     miss means "not cached", nothing more.
//
//   - Stats: hits and misses are counted exactly once per Get (never by
//     Has); the hit rate is a percentage rounded to two decimals.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
// # Basic usage
//
//	c := cache.New[[]byte](cache.Options[[]byte]{})
//	defer c.Close()
//
//	c.Set("patient:42", payload)
//	if v, ok := c.Get("patient:42"); ok {
//	    _ = v
//	}
//
// # Durable tiers
//
//	st, _ := file.New("/var/lib/app/cache")
//	c := cache.New[Profile](cache.Options[Profile]{Store: st})
//	c.SetWithPriority("profile:self", p, 0, priority.Critical)
//	// After a restart, a cache built over the same store restores the entry.
//
// # Observability
//
//	m := prom.New(nil, "tiercache", "app", nil)
//	log := logging.New(slog.Default(), "cache")
//	c := cache.New[string](cache.Options[string]{Metrics: m, Logger: log})
package cache
