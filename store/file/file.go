// Package file provides a directory-backed store.Store: one file per logical
// key, written atomically via a temp file and rename.
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/medicamenta/tiercache/store"
)

// Store persists each key as a file under Dir.
type Store struct {
	dir string
}

// New creates Dir (and parents) if needed and returns the store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Get reads the file for key, or returns store.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("file store: read %q: %w", key, err)
	}
	return b, nil
}

// Set writes value to a temp file and renames it into place, so readers
// never observe a partial write.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	dst := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file store: temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file store: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store: close %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store: rename %q: %w", key, err)
	}
	return nil
}

// path maps a logical key to a safe file name (keys may contain '/').
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

var _ store.Store = (*Store)(nil)
