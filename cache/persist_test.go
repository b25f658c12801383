package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medicamenta/tiercache/priority"
	"github.com/medicamenta/tiercache/store"
	"github.com/medicamenta/tiercache/store/memory"
)

// failStore rejects every operation, to exercise the absorb-and-log policy.
type failStore struct{}

func (failStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("boom")
}
func (failStore) Set(context.Context, string, []byte) error {
	return errors.New("boom")
}

var _ store.Store = failStore{}

// newPersistentCache builds a cache over st with the janitor off.
func newPersistentCache(t *testing.T, st store.Store, clk Clock) Cache[string] {
	t.Helper()
	c := New[string](Options[string]{
		Config: ConfigPatch{AutoCleanup: ptr(false)},
		Store:  st,
		Clock:  clk,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Critical entries survive a simulated restart; low entries do not.
func TestPersist_RoundTrip(t *testing.T) {
	t.Parallel()

	st := memory.New()

	c1 := newPersistentCache(t, st, nil)
	c1.SetWithPriority("vital", "keep me", 0, priority.Critical)
	c1.SetWithPriority("spare", "lose me", 0, priority.Low)
	if err := c1.Close(); err != nil { // flushes the final snapshot
		t.Fatal(err)
	}

	c2 := newPersistentCache(t, st, nil)
	if v, ok := c2.Get("vital"); !ok || v != "keep me" {
		t.Fatalf("critical entry lost: got %q ok=%v", v, ok)
	}
	if _, ok := c2.Get("spare"); ok {
		t.Fatal("low entry must not survive a restart")
	}
}

// High-tier metadata (priority, access count) is revived with the entry.
func TestPersist_MetadataSurvives(t *testing.T) {
	t.Parallel()

	st := memory.New()

	c1 := newPersistentCache(t, st, nil)
	c1.SetWithPriority("k", "v", 0, priority.High)
	c1.Get("k")
	c1.Get("k")
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := newPersistentCache(t, st, nil)
	md, ok := c2.Metadata("k")
	if !ok {
		t.Fatal("entry must be restored")
	}
	if md.Priority != priority.High {
		t.Fatalf("priority: got %v want high", md.Priority)
	}
	if md.AccessCount != 2 {
		t.Fatalf("accessCount: got %d want 2", md.AccessCount)
	}
}

// Entries whose deadline passed while the process was down are dropped on
// restore, not revived.
func TestPersist_ExpiredDroppedOnRestore(t *testing.T) {
	t.Parallel()

	st := memory.New()
	clk := &fakeClock{t: int64(time.Hour)}

	c1 := newPersistentCache(t, st, clk)
	c1.SetWithPriority("ephemeral", "v", time.Minute, priority.Critical)
	c1.SetWithPriority("stable", "v", 0, priority.Critical)
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	clk.add(2 * time.Minute) // "downtime"

	c2 := newPersistentCache(t, st, clk)
	if c2.Has("ephemeral") {
		t.Fatal("expired entry must not be restored")
	}
	if !c2.Has("stable") {
		t.Fatal("unexpired entry must be restored")
	}
}

// Corrupt persisted payloads mean an empty cache, not a failure.
func TestPersist_MalformedSnapshot(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	if err := st.Set(ctx, snapshotKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, configKey, []byte("also garbage")); err != nil {
		t.Fatal(err)
	}

	c := New[string](Options[string]{Store: st})
	t.Cleanup(func() { _ = c.Close() })
	if c.Len() != 0 {
		t.Fatalf("Len: got %d want 0", c.Len())
	}
	if got := c.Config(); got != DefaultConfig() {
		t.Fatalf("config: got %+v want defaults", got)
	}
	c.Set("works", "fine")
	if !c.Has("works") {
		t.Fatal("cache must stay functional")
	}
}

// An unknown schema version is treated like corruption.
func TestPersist_VersionMismatch(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	payload := []byte(`{"version":99,"savedAt":0,"entries":[{"key":"k","data":"\"v\"","priority":"critical","size":3}]}`)
	if err := st.Set(ctx, snapshotKey, payload); err != nil {
		t.Fatal(err)
	}

	c := newPersistentCache(t, st, nil)
	if c.Len() != 0 {
		t.Fatalf("Len: got %d want 0", c.Len())
	}
}

// An updated config survives a restart and overrides the defaults.
func TestPersist_ConfigRoundTrip(t *testing.T) {
	t.Parallel()

	st := memory.New()

	c1 := newPersistentCache(t, st, nil)
	c1.UpdateConfig(ConfigPatch{MaxEntries: ptr(7), CleanupInterval: ptr(time.Minute)})
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := newPersistentCache(t, st, nil)
	cfg := c2.Config()
	if cfg.MaxEntries != 7 {
		t.Fatalf("MaxEntries: got %d want 7", cfg.MaxEntries)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Fatalf("CleanupInterval: got %v want 1m", cfg.CleanupInterval)
	}
}

// Caller-supplied options beat the persisted config.
func TestPersist_CallerConfigWins(t *testing.T) {
	t.Parallel()

	st := memory.New()

	c1 := newPersistentCache(t, st, nil)
	c1.UpdateConfig(ConfigPatch{MaxEntries: ptr(7)})
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := New[string](Options[string]{
		Config: ConfigPatch{AutoCleanup: ptr(false), MaxEntries: ptr(3)},
		Store:  st,
	})
	t.Cleanup(func() { _ = c2.Close() })

	if got := c2.Config().MaxEntries; got != 3 {
		t.Fatalf("MaxEntries: got %d want 3", got)
	}
}

// A store that always fails must never surface errors to callers.
func TestPersist_StoreFailureAbsorbed(t *testing.T) {
	t.Parallel()

	c := newPersistentCache(t, failStore{}, nil)

	c.SetWithPriority("k", "v", 0, priority.Critical)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("in-memory state must be unaffected: got %q ok=%v", v, ok)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

// A restored snapshot is re-bounded by the current (tighter) config.
func TestPersist_RestoreHonorsBounds(t *testing.T) {
	t.Parallel()

	st := memory.New()

	c1 := newPersistentCache(t, st, nil)
	for _, k := range []string{"a", "b", "c", "d"} {
		c1.SetWithPriority(k, "v", 0, priority.Critical)
	}
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := New[string](Options[string]{
		Config: ConfigPatch{AutoCleanup: ptr(false), MaxEntries: ptr(2)},
		Store:  st,
	})
	t.Cleanup(func() { _ = c2.Close() })

	if got := c2.Len(); got != 2 {
		t.Fatalf("Len after bounded restore: got %d want 2", got)
	}
}
