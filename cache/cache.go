package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medicamenta/tiercache/internal/singleflight"
	"github.com/medicamenta/tiercache/internal/util"
	"github.com/medicamenta/tiercache/priority"
	"github.com/medicamenta/tiercache/store"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// cache holds the key map plus one intrusive LRU list per priority tier.
// A single mutex guards the map, the lists, and the byte accounting: the
// eviction order is a global ordering across tiers and recency, so the
// structure is deliberately not sharded.
type cache[V any] struct {
	opt Options[V]
	log Logger
	met Metrics
	st  store.Store

	// ---- guarded by mu ----
	mu    sync.RWMutex
	m     map[string]*entry[V]
	tiers [priority.NumTiers]tierList[V]
	size  int64 // sum of resident entry sizes
	cfg   Config

	closed atomic.Bool

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64

	writer *snapshotWriter[V] // nil when Options.Store is nil

	jmu   sync.Mutex
	jstop chan struct{}
}

// New constructs a cache with the provided Options.
//
// Configuration is resolved as defaults <- persisted config <- opt.Config.
// When a Store is set, the previously persisted critical/high snapshot is
// restored (already-expired entries are dropped) and a background writer is
// started; the periodic expired-entry sweep starts if AutoCleanup is on.
func New[V any](opt Options[V]) Cache[V] {
	if opt.Logger == nil {
		opt.Logger = NopLogger{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	c := &cache[V]{
		opt: opt,
		log: opt.Logger,
		met: opt.Metrics,
		st:  opt.Store,
		m:   make(map[string]*entry[V]),
	}

	cfg := DefaultConfig()
	if c.st != nil {
		if loaded, ok := c.loadConfig(); ok {
			cfg = loaded
		}
	}
	c.cfg = opt.Config.apply(cfg)

	if c.st != nil {
		c.restore()
		c.writer = newSnapshotWriter(c)
	}
	if c.cfg.AutoCleanup {
		c.startJanitor(c.cfg.CleanupInterval)
	}
	return c
}

// ---- Cache[V] implementation ----

// Set inserts or replaces key at Normal priority with no TTL.
func (c *cache[V]) Set(key string, v V) {
	c.put(key, v, 0, priority.Normal, false)
}

// SetWithTTL inserts or replaces key at Normal priority with a per-key TTL.
// A non-positive ttl disables expiration for this entry.
func (c *cache[V]) SetWithTTL(key string, v V, ttl time.Duration) {
	c.put(key, v, ttl, priority.Normal, false)
}

// SetWithPriority inserts or replaces key in the given tier.
func (c *cache[V]) SetWithPriority(key string, v V, ttl time.Duration, p priority.Priority) {
	c.put(key, v, ttl, p, false)
}

// Add inserts key only if absent. Returns false on duplicate.
func (c *cache[V]) Add(key string, v V) bool {
	return c.put(key, v, 0, priority.Normal, true)
}

// Get returns the value for key, counting a hit or a miss. On hit the entry
// is promoted to MRU within its tier and its access stats are updated.
func (c *cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}

	c.mu.Lock()
	e, ok := c.m[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		c.met.Miss()
		return zero, false
	}
	if c.expiredLocked(e) {
		c.evictEntryLocked(e, EvictTTL)
		entries, bytes := len(c.m), c.size
		c.mu.Unlock()
		c.met.Size(entries, bytes)
		c.markEntriesDirty()
		c.misses.Add(1)
		c.met.Miss()
		return zero, false
	}
	e.accessCount++
	e.lastAccessed = c.now()
	c.tiers[e.prio].moveToFront(e)
	v := e.val
	c.mu.Unlock()

	c.hits.Add(1)
	c.met.Hit()
	return v, true
}

// GetOrLoad returns the value for key; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight). The loaded
// value is cached at Normal priority with the config's DefaultTTL.
func (c *cache[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	// fast path
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	return c.sf.Do(ctx, key, func() (V, error) {
		// double-check after flight join
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err == nil {
			c.SetWithTTL(key, v, c.Config().DefaultTTL)
		}
		return v, err
	})
}

// Has reports presence without touching hit/miss counters or access stats.
// An expired entry is removed lazily, same as Get.
func (c *cache[V]) Has(key string) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	e, ok := c.m[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if c.expiredLocked(e) {
		c.evictEntryLocked(e, EvictTTL)
		entries, bytes := len(c.m), c.size
		c.mu.Unlock()
		c.met.Size(entries, bytes)
		c.markEntriesDirty()
		return false
	}
	c.mu.Unlock()
	return true
}

// Delete removes one entry if present. Explicit deletes are not counted as
// evictions and do not trigger OnEvict.
func (c *cache[V]) Delete(key string) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	e, ok := c.m[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.unlinkLocked(e)
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	c.met.Size(entries, bytes)
	c.log.Debug("deleted entry", "key", key)
	c.markEntriesDirty()
	return true
}

// Clear removes all entries. Cumulative counters are untouched.
func (c *cache[V]) Clear() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	removed := len(c.m)
	c.m = make(map[string]*entry[V])
	c.tiers = [priority.NumTiers]tierList[V]{}
	c.size = 0
	c.mu.Unlock()

	c.met.Size(0, 0)
	c.log.Info("cache cleared", "removed", removed)
	c.markEntriesDirty()
}

// ClearByPriority removes every entry in tier p.
func (c *cache[V]) ClearByPriority(p priority.Priority) int {
	if c.closed.Load() || !p.Valid() {
		return 0
	}

	c.mu.Lock()
	removed := 0
	for e := c.tiers[p].head; e != nil; {
		next := e.next
		c.unlinkLocked(e)
		removed++
		e = next
	}
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	if removed > 0 {
		c.met.Size(entries, bytes)
		c.log.Info("cleared priority tier", "priority", p.String(), "removed", removed)
		c.markEntriesDirty()
	}
	return removed
}

// ClearExpired removes every entry whose TTL has passed. A sweep that
// removes nothing performs no persistence write.
func (c *cache[V]) ClearExpired() int {
	if c.closed.Load() {
		return 0
	}

	c.mu.Lock()
	removed := 0
	for i := range c.tiers {
		for e := c.tiers[i].head; e != nil; {
			next := e.next
			if c.expiredLocked(e) {
				c.evictEntryLocked(e, EvictTTL)
				removed++
			}
			e = next
		}
	}
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	if removed > 0 {
		c.met.Size(entries, bytes)
		c.log.Debug("purged expired entries", "removed", removed)
		c.markEntriesDirty()
	}
	return removed
}

// Keys returns all current keys in no particular order.
func (c *cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	return keys
}

// Metadata returns the entry's descriptive fields without the payload.
func (c *cache[V]) Metadata(key string) (Metadata, bool) {
	if c.closed.Load() {
		return Metadata{}, false
	}

	c.mu.Lock()
	e, ok := c.m[key]
	if !ok {
		c.mu.Unlock()
		return Metadata{}, false
	}
	if c.expiredLocked(e) {
		c.evictEntryLocked(e, EvictTTL)
		entries, bytes := len(c.m), c.size
		c.mu.Unlock()
		c.met.Size(entries, bytes)
		c.markEntriesDirty()
		return Metadata{}, false
	}
	md := e.metadata()
	c.mu.Unlock()
	return md, true
}

// MostUsed reports entries ordered by tier (critical first), then by access
// count descending.
func (c *cache[V]) MostUsed(limit int) []Usage {
	if limit <= 0 {
		limit = 10
	}

	c.mu.RLock()
	rows := make([]Usage, 0, len(c.m))
	for _, e := range c.m {
		rows = append(rows, Usage{Key: e.key, AccessCount: e.accessCount, Priority: e.prio})
	}
	c.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Priority != rows[j].Priority {
			return rows[i].Priority > rows[j].Priority
		}
		return rows[i].AccessCount > rows[j].AccessCount
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Stats returns a snapshot of the cache's counters.
func (c *cache[V]) Stats() Stats {
	c.mu.RLock()
	entries, bytes := len(c.m), c.size
	c.mu.RUnlock()

	s := Stats{
		Entries:   entries,
		Size:      bytes,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = math.Round(float64(s.Hits)/float64(total)*10000) / 100
	}
	return s
}

// Config returns a snapshot copy of the live configuration.
func (c *cache[V]) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// UpdateConfig merges the patch into the live config, persists it, enforces
// the (possibly shrunk) bounds, and restarts the cleanup sweep if its
// settings changed.
func (c *cache[V]) UpdateConfig(p ConfigPatch) {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	old := c.cfg
	c.cfg = p.apply(old)
	cfg := c.cfg
	c.enforceLimitsLocked()
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	c.met.Size(entries, bytes)
	c.markConfigDirty()
	if old.AutoCleanup != cfg.AutoCleanup || old.CleanupInterval != cfg.CleanupInterval {
		c.restartJanitor()
	}
	c.log.Info("config updated",
		"maxSize", cfg.MaxSize,
		"maxEntries", cfg.MaxEntries,
		"autoCleanup", cfg.AutoCleanup,
		"cleanupInterval", cfg.CleanupInterval)
}

// Len returns the number of resident entries.
func (c *cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Close stops the cleanup sweep and the persistence writer. The writer
// flushes a final snapshot before exiting. Future operations are ignored.
func (c *cache[V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.stopJanitor()
	if c.writer != nil {
		c.writer.stop()
	}
	return nil
}

// ---- internals ----

// put is the shared insert/replace path. It returns false when nothing was
// stored (closed cache, duplicate for ifAbsent, unserializable or oversized
// payload).
func (c *cache[V]) put(key string, v V, ttl time.Duration, p priority.Priority, ifAbsent bool) bool {
	if c.closed.Load() {
		return false
	}
	if !p.Valid() {
		p = priority.Normal
	}
	size, err := payloadSize(v)
	if err != nil {
		c.log.Error("set dropped: payload not serializable", "key", key, "error", err)
		return false
	}

	c.mu.Lock()
	if size > c.cfg.MaxSize {
		// Evicting everything else still could not make room; refuse the
		// entry instead of flushing the whole cache for it.
		maxSize := c.cfg.MaxSize
		c.mu.Unlock()
		c.log.Error("set dropped: entry larger than cache limit",
			"key", key, "size", size, "maxSize", maxSize)
		return false
	}
	if old, ok := c.m[key]; ok {
		if ifAbsent {
			c.mu.Unlock()
			return false
		}
		// Replace: the old entry's size leaves the accounting first.
		c.unlinkLocked(old)
	}
	c.makeRoomLocked(size)

	now := c.now()
	e := &entry[V]{
		key:          key,
		val:          v,
		prio:         p,
		size:         size,
		createdAt:    now,
		lastAccessed: now,
	}
	if ttl > 0 {
		e.exp = now + int64(ttl)
	}
	c.m[key] = e
	c.tiers[p].pushFront(e)
	c.size += size
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	c.met.Size(entries, bytes)
	c.log.Debug("cached entry", "key", key, "priority", p.String(), "size", size, "ttl", ttl)
	c.markEntriesDirty()
	return true
}

// expiredLocked reports whether e's deadline has passed. The same test is
// used by Get/Has and by the periodic sweep.
func (c *cache[V]) expiredLocked(e *entry[V]) bool {
	if e.exp == 0 {
		return false
	}
	return e.exp < c.now()
}

func (c *cache[V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// unlinkLocked removes e from its tier list, the map, and the byte
// accounting. No metrics or callbacks fire here.
func (c *cache[V]) unlinkLocked(e *entry[V]) {
	c.tiers[e.prio].remove(e)
	delete(c.m, e.key)
	c.size -= e.size
	if c.size < 0 {
		c.size = 0
	}
}

// evictEntryLocked removes e and reports the eviction to metrics and the
// OnEvict callback.
func (c *cache[V]) evictEntryLocked(e *entry[V], reason EvictReason) {
	c.unlinkLocked(e)
	c.met.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		// Called under the lock; keep callbacks lightweight.
		cb(e.key, e.val, reason)
	}
}

// makeRoomLocked evicts until an incoming entry of the given size fits
// within both bounds.
func (c *cache[V]) makeRoomLocked(incoming int64) {
	c.evictUntilLocked(func() bool {
		return c.size+incoming > c.cfg.MaxSize || len(c.m)+1 > c.cfg.MaxEntries
	})
}

// enforceLimitsLocked evicts until the resident set honors the current
// bounds (used after restore and config shrinks).
func (c *cache[V]) enforceLimitsLocked() {
	c.evictUntilLocked(func() bool {
		return c.size > c.cfg.MaxSize || len(c.m) > c.cfg.MaxEntries
	})
}

// evictUntilLocked removes entries while over() holds, walking tiers from
// low to critical and taking each tier's LRU tail first. Critical entries
// are reached only when draining every lower tier was not enough.
func (c *cache[V]) evictUntilLocked(over func() bool) {
	if !over() {
		return
	}
	removed, freed := 0, int64(0)
	for _, p := range priority.EvictionOrder() {
		for over() {
			tail := c.tiers[p].back()
			if tail == nil {
				break
			}
			freed += tail.size
			removed++
			c.evictEntryLocked(tail, EvictCapacity)
		}
		if !over() {
			break
		}
	}
	if removed > 0 {
		c.evicts.Add(uint64(removed))
		c.log.Info("evicted entries to honor capacity", "evicted", removed, "freedBytes", freed)
	}
}

// payloadSize measures a payload as the byte length of its JSON form. An
// approximation of the in-memory footprint, but deterministic and monotonic
// with payload complexity.
func payloadSize[V any](v V) (int64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}
