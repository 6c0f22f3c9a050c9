package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRUUpdateExisting(t *testing.T) {
	c, err := NewLRU[string](2)
	require.NoError(t, err)

	c.Set("k", "v1")
	c.Set("k", "v2")

	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestLRUDelete(t *testing.T) {
	c, err := NewLRU[int](4)
	require.NoError(t, err)

	c.Set("x", 9)
	assert.True(t, c.Delete("x"))
	assert.False(t, c.Delete("x"))
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestLRUInvalidCapacity(t *testing.T) {
	_, err := NewLRU[int](0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestLRUStats(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
