package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicamenta/tiercache/store"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "snapshot", []byte(`{"v":1}`)))
	got, err := s.Get(ctx, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)

	require.NoError(t, s.Set(ctx, "snapshot", []byte(`{"v":2}`)))
	got, err = s.Get(ctx, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)
}

func TestKeyWithSeparators(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	// Logical keys may contain path separators; they must not escape the dir.
	require.NoError(t, s.Set(ctx, "tiercache/entries", []byte("x")))
	got, err := s.Get(ctx, "tiercache/entries")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestReopenSeesData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", []byte("persisted")))

	s2, err := New(dir)
	require.NoError(t, err)
	got, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}
