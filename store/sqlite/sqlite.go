// Package sqlite provides a store.Store backed by a single-table SQLite
// database via GORM. It uses the pure-Go glebarez/sqlite driver, so no CGO
// is required.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/medicamenta/tiercache/store"
)

// record is one persisted key/value pair.
type record struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte `gorm:"column:value"`
	UpdatedAt time.Time
}

func (record) TableName() string { return "kv_entries" }

// Store persists values in a SQLite kv_entries table.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) the SQLite database at path and migrates
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", path, err)
	}
	return New(db)
}

// New wraps an existing GORM connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite store: get %q: %w", key, err)
	}
	return rec.Value, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	rec := record{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("sqlite store: set %q: %w", key, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
