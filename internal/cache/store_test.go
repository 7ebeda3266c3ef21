package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreSetNX(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	set, err := store.SetNX(ctx, "k", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = store.SetNX(ctx, "k", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	// the existing value survives the failed set
	value, _, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("1"), value)
}

func TestMemoryStoreIncrementWithExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := store.IncrementWithExpiry(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// a fresh window restarts the count
	count, err := store.IncrementWithExpiry(ctx, "short", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	time.Sleep(25 * time.Millisecond)
	count, err = store.IncrementWithExpiry(ctx, "short", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
