package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/medicamenta/tiercache/priority"
	"github.com/medicamenta/tiercache/store"
)

// Fixed logical keys in the durable store.
const (
	snapshotKey = "tiercache/entries"
	configKey   = "tiercache/config"
)

// schemaVersion tags both persisted payloads. A mismatch on load is treated
// like corruption: logged, dropped, defaults used.
const schemaVersion = 1

// snapshotEntry is the durable form of one cached entry.
type snapshotEntry struct {
	Key          string            `json:"key"`
	Data         json.RawMessage   `json:"data"`
	Priority     priority.Priority `json:"priority"`
	Size         int64             `json:"size"`
	CreatedAt    int64             `json:"createdAt"`
	ExpiresAt    int64             `json:"expiresAt,omitempty"`
	AccessCount  uint64            `json:"accessCount"`
	LastAccessed int64             `json:"lastAccessed"`
}

type snapshot struct {
	Version int             `json:"version"`
	SavedAt int64           `json:"savedAt"`
	Entries []snapshotEntry `json:"entries"`
}

type persistedConfig struct {
	Version int    `json:"version"`
	Config  Config `json:"config"`
}

// snapshotWriter flushes the durable subset and the config to the store on
// its own goroutine. Mutations only mark a dirty flag and poke the writer,
// so callers never wait on storage I/O; consecutive mutations coalesce into
// one write. stop() performs a final unconditional flush.
type snapshotWriter[V any] struct {
	c *cache[V]

	wake    chan struct{} // buffered(1): at most one pending poke
	done    chan struct{}
	stopped chan struct{}

	entriesDirty atomic.Bool
	configDirty  atomic.Bool
}

func newSnapshotWriter[V any](c *cache[V]) *snapshotWriter[V] {
	w := &snapshotWriter[V]{
		c:       c,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *snapshotWriter[V]) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			// Final flush regardless of dirty flags, so Close always
			// leaves the latest state on disk.
			w.entriesDirty.Store(true)
			w.configDirty.Store(true)
			w.flush()
			return
		}
	}
}

func (w *snapshotWriter[V]) stop() {
	close(w.done)
	<-w.stopped
}

func (w *snapshotWriter[V]) markEntries() {
	w.entriesDirty.Store(true)
	w.poke()
}

func (w *snapshotWriter[V]) markConfig() {
	w.configDirty.Store(true)
	w.poke()
}

func (w *snapshotWriter[V]) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter[V]) flush() {
	ctx := context.Background()
	if w.entriesDirty.Swap(false) {
		if err := w.c.persistEntries(ctx); err != nil {
			w.c.log.Error("snapshot write failed", "error", err)
		}
	}
	if w.configDirty.Swap(false) {
		if err := w.c.persistConfig(ctx); err != nil {
			w.c.log.Error("config write failed", "error", err)
		}
	}
}

// markEntriesDirty schedules a snapshot write; a no-op without a store.
func (c *cache[V]) markEntriesDirty() {
	if c.writer != nil {
		c.writer.markEntries()
	}
}

// markConfigDirty schedules a config write; a no-op without a store.
func (c *cache[V]) markConfigDirty() {
	if c.writer != nil {
		c.writer.markConfig()
	}
}

// persistEntries serializes the critical/high subset and writes it under
// snapshotKey. Entries that fail to serialize are skipped, not fatal.
func (c *cache[V]) persistEntries(ctx context.Context) error {
	c.mu.RLock()
	snap := snapshot{Version: schemaVersion, SavedAt: c.now()}
	for _, e := range c.m {
		if !e.prio.Durable() {
			continue
		}
		data, err := json.Marshal(e.val)
		if err != nil {
			c.log.Error("snapshot entry skipped: payload not serializable", "key", e.key, "error", err)
			continue
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:          e.key,
			Data:         data,
			Priority:     e.prio,
			Size:         e.size,
			CreatedAt:    e.createdAt,
			ExpiresAt:    e.exp,
			AccessCount:  e.accessCount,
			LastAccessed: e.lastAccessed,
		})
	}
	c.mu.RUnlock()

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.st.Set(ctx, snapshotKey, b)
}

// persistConfig writes the live config under configKey.
func (c *cache[V]) persistConfig(ctx context.Context) error {
	c.mu.RLock()
	pc := persistedConfig{Version: schemaVersion, Config: c.cfg}
	c.mu.RUnlock()

	b, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return c.st.Set(ctx, configKey, b)
}

// loadConfig reads the persisted config. Missing, corrupt, or version-
// mismatched payloads fall back to defaults; loaded values are clamped to
// sane ranges.
func (c *cache[V]) loadConfig() (Config, bool) {
	b, err := c.st.Get(context.Background(), configKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Error("config load failed; using defaults", "error", err)
		}
		return Config{}, false
	}
	var pc persistedConfig
	if err := json.Unmarshal(b, &pc); err != nil {
		c.log.Error("config decode failed; using defaults", "error", err)
		return Config{}, false
	}
	if pc.Version != schemaVersion {
		c.log.Error("config version mismatch; using defaults",
			"found", pc.Version, "want", schemaVersion)
		return Config{}, false
	}

	cfg, def := pc.Config, DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.DefaultTTL < 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	return cfg, true
}

// restore loads the persisted snapshot into the empty cache. Entries whose
// deadline has already passed are silently dropped rather than revived;
// anything that fails to decode is skipped. Runs once from New.
func (c *cache[V]) restore() {
	b, err := c.st.Get(context.Background(), snapshotKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Error("snapshot load failed; starting empty", "error", err)
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		c.log.Error("snapshot decode failed; starting empty", "error", err)
		return
	}
	if snap.Version != schemaVersion {
		c.log.Error("snapshot version mismatch; starting empty",
			"found", snap.Version, "want", schemaVersion)
		return
	}

	// Oldest first, so pushFront rebuilds each tier in recency order.
	sort.Slice(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].LastAccessed < snap.Entries[j].LastAccessed
	})

	c.mu.Lock()
	now := c.now()
	restored := 0
	for i := range snap.Entries {
		se := &snap.Entries[i]
		if se.ExpiresAt != 0 && se.ExpiresAt < now {
			continue
		}
		if !se.Priority.Valid() || !se.Priority.Durable() {
			continue
		}
		var v V
		if err := json.Unmarshal(se.Data, &v); err != nil {
			c.log.Error("snapshot entry decode failed; skipped", "key", se.Key, "error", err)
			continue
		}
		if old, ok := c.m[se.Key]; ok {
			c.unlinkLocked(old)
		}
		e := &entry[V]{
			key:          se.Key,
			val:          v,
			prio:         se.Priority,
			size:         se.Size,
			createdAt:    se.CreatedAt,
			exp:          se.ExpiresAt,
			lastAccessed: se.LastAccessed,
			accessCount:  se.AccessCount,
		}
		c.m[e.key] = e
		c.tiers[e.prio].pushFront(e)
		c.size += e.size
		restored++
	}
	// The current config may be tighter than the one the snapshot was
	// written under.
	c.enforceLimitsLocked()
	entries, bytes := len(c.m), c.size
	c.mu.Unlock()

	c.met.Size(entries, bytes)
	if restored > 0 {
		c.log.Info("restored persisted entries", "restored", restored)
	}
}
