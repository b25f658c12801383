// Command bench runs a synthetic workload against the cache and exposes
// optional pprof/Prometheus endpoints. Flag defaults can come from BENCH_*
// variables in the environment or a .env file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicamenta/tiercache/cache"
	"github.com/medicamenta/tiercache/logging"
	"github.com/medicamenta/tiercache/metrics/prom"
	"github.com/medicamenta/tiercache/priority"
	"github.com/medicamenta/tiercache/store/sqlite"
)

func main() {
	// A .env file in the working directory provides flag defaults; a
	// missing file is fine.
	_ = godotenv.Load()

	// ---- Flags (BENCH_* env vars provide defaults) ----
	var (
		maxEntries = flag.Int("max-entries", envInt("BENCH_MAX_ENTRIES", 100_000), "entry count limit")
		maxSize    = flag.Int64("max-size", envInt64("BENCH_MAX_SIZE", 256<<20), "payload byte limit")
		storePath  = flag.String("store", os.Getenv("BENCH_STORE"), "SQLite path for durable tiers (empty = no persistence)")

		workers  = flag.Int("workers", envInt("BENCH_WORKERS", 2*runtime.GOMAXPROCS(0)), "number of worker goroutines")
		duration = flag.Duration("duration", envDuration("BENCH_DURATION", 10*time.Second), "benchmark duration")
		readPct  = flag.Int("reads", envInt("BENCH_READS", 80), "read percentage [0..100]")

		keys = flag.Int("keys", envInt("BENCH_KEYS", 1_000_000), "keyspace size")
		seed = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof serving", "addr", *pprofAddr)
			logger.Error("pprof stopped", "error", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := prom.New(nil, "tiercache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("metrics serving", "addr", *metricsAddr)
		logger.Error("metrics stopped", "error", http.ListenAndServe(*metricsAddr, nil))
	}()

	opt := cache.Options[[]byte]{
		Config: cache.ConfigPatch{
			MaxEntries: maxEntries,
			MaxSize:    maxSize,
		},
		Metrics: metrics,
		Logger:  logging.New(logger, "cache"),
	}
	if *storePath != "" {
		st, err := sqlite.Open(*storePath)
		if err != nil {
			logger.Error("store open failed", "path", *storePath, "error", err)
			os.Exit(1)
		}
		opt.Store = st
	}

	c := cache.New[[]byte](opt)
	defer c.Close()

	// Preload half the entry limit for a realistic hit rate.
	payload := []byte("0123456789abcdef")
	for i := 0; i < *maxEntries/2; i++ {
		c.Set("k:"+strconv.Itoa(i), payload)
	}

	logger.Info("benchmark starting",
		"workers", *workers, "duration", *duration, "reads", *readPct, "keys", *keys)

	var ops atomic.Int64
	stop := time.Now().Add(*duration)

	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(*seed + int64(id)*7919))
			for time.Now().Before(stop) {
				k := "k:" + strconv.Itoa(r.Intn(*keys))
				if r.Intn(100) < *readPct {
					c.Get(k)
				} else {
					c.SetWithPriority(k, payload, 0, priority.Priority(r.Intn(priority.NumTiers)))
				}
				ops.Add(1)
			}
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	elapsed := (*duration).Seconds()
	fmt.Printf("ops=%d (%.0f op/s)\n", ops.Load(), float64(ops.Load())/elapsed)
	fmt.Printf("entries=%d size=%dB evictions=%d hitRate=%.2f%%\n",
		s.Entries, s.Size, s.Evictions, s.HitRate)
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(name string, def int64) int64 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
