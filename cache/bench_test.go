package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/medicamenta/tiercache/priority"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// String keys include strconv/concat costs and often allocate, which is
// fine for an end-to-end benchmark.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string](Options[string]{Config: ConfigPatch{
		MaxEntries:  ptr(100_000),
		AutoCleanup: ptr(false),
	}})
	b.Cleanup(func() { _ = c.Close() })

	// Preload half the capacity to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		c.Set("k:"+strconv.Itoa(i), "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkCache_TierChurn measures the eviction path: every Set overflows
// a small cache and walks the tier lists.
func BenchmarkCache_TierChurn(b *testing.B) {
	c := New[string](Options[string]{Config: ConfigPatch{
		MaxEntries:  ptr(1024),
		AutoCleanup: ptr(false),
	}})
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.SetWithPriority("k:"+strconv.Itoa(i), "v", 0, priority.Priority(i%priority.NumTiers))
	}
}

