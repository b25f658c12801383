package cache

import (
	"context"
	"time"

	"github.com/medicamenta/tiercache/store"
)

// EvictReason explains why an entry was removed without an explicit Delete.
type EvictReason int

const (
	// EvictCapacity — removed to make room for an incoming entry.
	EvictCapacity EvictReason = iota
	// EvictTTL — expired, removed lazily on access or by the cleanup sweep.
	EvictTTL
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, bytes int64)
}

// Logger receives the cache's structured log events. Arguments follow the
// log/slog convention of alternating keys and values. Implementations must
// not panic; the logging package provides a slog-backed adapter and
// NopLogger is used by default.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards all log events.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

var _ Logger = NopLogger{}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Defaults applied for zero-valued config fields.
const (
	DefaultMaxSize         = 50 << 20 // 50 MiB
	DefaultMaxEntries      = 1000
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// Config is the cache's runtime tuning. It is persisted to the durable store
// and reloaded on construction, so an updated config survives a restart.
type Config struct {
	// MaxSize is the total payload byte limit.
	MaxSize int64 `json:"maxSize"`

	// MaxEntries is the entry count limit.
	MaxEntries int `json:"maxEntries"`

	// DefaultTTL is advisory: Set and Add store entries without expiry and
	// callers pass per-entry TTLs explicitly. Only GetOrLoad applies it, to
	// bound the lifetime of loader results.
	DefaultTTL time.Duration `json:"defaultTTL"`

	// AutoCleanup enables the periodic expired-entry sweep.
	AutoCleanup bool `json:"enableAutoCleanup"`

	// CleanupInterval is the sweep period when AutoCleanup is on.
	CleanupInterval time.Duration `json:"cleanupInterval"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:         DefaultMaxSize,
		MaxEntries:      DefaultMaxEntries,
		DefaultTTL:      DefaultTTL,
		AutoCleanup:     true,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// ConfigPatch is a partial Config: nil fields are left unchanged.
// Used by UpdateConfig and by Options to override loaded settings.
type ConfigPatch struct {
	MaxSize         *int64
	MaxEntries      *int
	DefaultTTL      *time.Duration
	AutoCleanup     *bool
	CleanupInterval *time.Duration
}

// apply merges the patch into cfg. Non-positive limits and intervals are
// ignored rather than propagated.
func (p ConfigPatch) apply(cfg Config) Config {
	if p.MaxSize != nil && *p.MaxSize > 0 {
		cfg.MaxSize = *p.MaxSize
	}
	if p.MaxEntries != nil && *p.MaxEntries > 0 {
		cfg.MaxEntries = *p.MaxEntries
	}
	if p.DefaultTTL != nil && *p.DefaultTTL >= 0 {
		cfg.DefaultTTL = *p.DefaultTTL
	}
	if p.AutoCleanup != nil {
		cfg.AutoCleanup = *p.AutoCleanup
	}
	if p.CleanupInterval != nil && *p.CleanupInterval > 0 {
		cfg.CleanupInterval = *p.CleanupInterval
	}
	return cfg
}

// Options configures the cache. The zero value is usable: defaults are
// applied in New, persistence and metrics are off, and logs are discarded.
type Options[V any] struct {
	// Config overrides settings loaded from the store (which in turn
	// override DefaultConfig). Nil fields keep the loaded value.
	Config ConfigPatch

	// Store is the durable backend for the critical/high tier snapshot and
	// the persisted config. Nil disables persistence entirely.
	Store store.Store

	// Logger receives structured events. Nil => NopLogger.
	Logger Logger

	// Metrics receives Hit/Miss/Evict/Size signals. Nil => NoopMetrics.
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock

	// Loader fetches a value on cache miss. Used by GetOrLoad; loaded
	// values are cached at Normal priority with the config's DefaultTTL.
	Loader func(ctx context.Context, key string) (V, error)

	// OnEvict is called for every capacity or TTL eviction, under the cache
	// lock; keep callbacks lightweight. Explicit Delete/Clear calls do not
	// trigger it.
	OnEvict func(key string, v V, reason EvictReason)
}
