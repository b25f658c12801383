//go:build go1.18

package cache

import (
	"strings"
	"testing"

	"github.com/medicamenta/tiercache/priority"
)

// Fuzz basic Set/Get/Delete semantics under arbitrary string inputs and
// tiers. Guards against panics and ensures core invariants hold.
// NOTE: key/value lengths are capped to avoid pathological memory usage
// during fuzzing (this does not weaken the invariants we check).
func FuzzCache_SetGetDelete(f *testing.F) {
	// Seed corpus: empty, ASCII, Unicode, long strings.
	f.Add("", "", uint8(0))
	f.Add("a", "1", uint8(1))
	f.Add("b", "2", uint8(2))
	f.Add("αβγ", "δ", uint8(3))
	f.Add("emoji🙂", "🙂🙂", uint8(200))
	f.Add("long", strings.Repeat("x", 1024), uint8(1))

	f.Fuzz(func(t *testing.T, k, v string, tier uint8) {
		const limit = 1 << 12 // 4096
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string](Options[string]{Config: ConfigPatch{
			MaxEntries:  ptr(16),
			AutoCleanup: ptr(false),
		}})
		t.Cleanup(func() { _ = c.Close() })

		// Set -> Get must return the same value. Invalid tiers are treated
		// as Normal rather than rejected.
		c.SetWithPriority(k, v, 0, priority.Priority(tier))
		got, ok := c.Get(k)
		if !ok || got != v {
			t.Fatalf("after Set/Get: want %q, got %q ok=%v", v, got, ok)
		}

		// Add duplicate must not overwrite and must return false.
		if ok := c.Add(k, "other"); ok {
			t.Fatalf("Add duplicate returned true")
		}
		if got2, ok := c.Get(k); !ok || got2 != v {
			t.Fatalf("after duplicate Add: want %q, got %q ok=%v", v, got2, ok)
		}

		// Delete must remove and report true exactly once.
		if !c.Delete(k) {
			t.Fatalf("Delete must return true")
		}
		if c.Delete(k) {
			t.Fatalf("second Delete must return false")
		}
		if _, ok := c.Get(k); ok {
			t.Fatalf("key must be absent after Delete")
		}

		// Bounds must hold at every observation point.
		s := c.Stats()
		if s.Entries != 0 || s.Size != 0 {
			t.Fatalf("empty cache reports entries=%d size=%d", s.Entries, s.Size)
		}
	})
}
