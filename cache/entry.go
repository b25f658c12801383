package cache

import (
	"time"

	"github.com/medicamenta/tiercache/priority"
)

// entry is an intrusive doubly linked list element owned by its priority
// tier's list. It stores the key/value alongside the metadata used for
// eviction ordering, TTL, size accounting, and usage stats.
type entry[V any] struct {
	key string
	val V

	// Intrusive list links within the entry's tier: head is MRU, tail is LRU.
	prev *entry[V]
	next *entry[V]

	prio priority.Priority

	// Serialized byte size of val, fixed when the entry is created.
	// Replacing a key creates a fresh entry with a fresh size.
	size int64

	// Absolute UnixNano timestamps. exp == 0 means "no TTL".
	createdAt    int64
	exp          int64
	lastAccessed int64

	// Number of successful Get calls since insertion.
	accessCount uint64
}

// Metadata is everything about an entry except its payload.
type Metadata struct {
	Key          string
	Priority     priority.Priority
	Size         int64
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero when the entry never expires via TTL
	AccessCount  uint64
	LastAccessed time.Time
}

// Usage is one row of the MostUsed report.
type Usage struct {
	Key         string
	AccessCount uint64
	Priority    priority.Priority
}

// metadata snapshots the entry's descriptive fields.
func (e *entry[V]) metadata() Metadata {
	md := Metadata{
		Key:          e.key,
		Priority:     e.prio,
		Size:         e.size,
		CreatedAt:    time.Unix(0, e.createdAt),
		AccessCount:  e.accessCount,
		LastAccessed: time.Unix(0, e.lastAccessed),
	}
	if e.exp != 0 {
		md.ExpiresAt = time.Unix(0, e.exp)
	}
	return md
}
