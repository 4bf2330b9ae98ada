package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("columns:orders", []string{"status", "total"}, 0)

	value, ok := c.Get("columns:orders")
	require.True(t, ok)
	assert.Equal(t, []string{"status", "total"}, value)
}

func TestGetMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("ephemeral", 42, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := c.Get("ephemeral")
	assert.False(t, ok)
}

func TestDeletePrefix(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("columns:orders", 1, 0)
	c.Set("relationships:orders", 2, 0)
	c.Set("columns:customers", 3, 0)

	c.DeletePrefix("columns:")

	_, ok := c.Get("columns:orders")
	assert.False(t, ok)
	_, ok = c.Get("columns:customers")
	assert.False(t, ok)

	_, ok = c.Get("relationships:orders")
	assert.True(t, ok)
}

func TestCleanupRemovesExpired(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("old", 1, time.Nanosecond)
	c.Set("fresh", 2, time.Minute)
	time.Sleep(time.Millisecond)

	c.Cleanup()

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.TotalEntries)
}

func TestClearResetsStats(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Get("a")
	c.Get("b")

	c.Clear()

	stats := c.GetStats()
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestHitRate(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.GetStats()
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.InDelta(t, 1.0/3.0, stats.MissRate, 0.001)
}
