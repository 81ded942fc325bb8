package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "answer:what is a1c?", Key("  What is\tA1C? "))
	assert.Equal(t, Key("what is a1c?"), Key("WHAT IS   A1C?"))
}

func TestMemory_LRU(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Touch a so b becomes the eviction candidate.
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)

	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(v))
	assert.Equal(t, 2, c.Len())
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewMemory(4)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemory_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(1)

	require.NoError(t, c.Set(ctx, "k", []byte("old"), 0))
	require.NoError(t, c.Set(ctx, "k", []byte("new"), 0))

	v, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", string(v))
}

func TestRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, "redis://"+srv.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	srv.FastForward(2 * time.Minute)

	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}
