// Package memory provides a map-backed store.Store, mainly for tests and
// for running the cache without durable persistence wiring.
package memory

import (
	"context"
	"sync"

	"github.com/medicamenta/tiercache/store"
)

// Store keeps values in a plain map guarded by a mutex.
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{m: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or store.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	in := make([]byte, len(value))
	copy(in, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = in
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

var _ store.Store = (*Store)(nil)
