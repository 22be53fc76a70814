package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New[string](0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = New[string](-1, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = New[string](10, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = New[string](10, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestGetSet_RoundTrip(t *testing.T) {
	c, err := New[string](10, time.Minute)
	require.NoError(t, err)

	c.Set("key", "value")

	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestSet_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[int](3, time.Minute)
	require.NoError(t, err)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)

	// key1 is oldest; inserting key4 evicts it
	c.Set("key4", 4)

	_, ok := c.Get("key1")
	assert.False(t, ok)
	for _, key := range []string{"key2", "key3", "key4"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, uint64(1), c.GetStats().Evictions)
}

func TestGet_RefreshesRecency(t *testing.T) {
	c, err := New[int](3, time.Minute)
	require.NoError(t, err)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)

	// Touch key1 so key2 becomes the eviction victim
	_, ok := c.Get("key1")
	require.True(t, ok)

	c.Set("key4", 4)

	_, ok = c.Get("key2")
	assert.False(t, ok)
	_, ok = c.Get("key1")
	assert.True(t, ok)
}

func TestHas_RefreshesRecencyWithoutCounting(t *testing.T) {
	c, err := New[int](3, time.Minute)
	require.NoError(t, err)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)

	assert.True(t, c.Has("key1"))
	assert.False(t, c.Has("missing"))

	// Existence probes never move the hit/miss counters
	stats := c.GetStats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)

	// But they do refresh recency: key2 is now the victim
	c.Set("key4", 4)
	_, ok := c.Get("key2")
	assert.False(t, ok)
	_, ok = c.Get("key1")
	assert.True(t, ok)
}

func TestTTL_ExpiresLazily(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	c, err := New[string](10, 100*time.Millisecond, WithClock[string](clock))
	require.NoError(t, err)

	c.Set("key", "value")

	now = now.Add(50 * time.Millisecond)
	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	now = now.Add(100 * time.Millisecond)
	_, ok = c.Get("key")
	assert.False(t, ok)

	// The expired entry was purged, not just hidden
	assert.Equal(t, 0, c.Len())
}

func TestTTL_ResetOnOverwrite(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	c, err := New[string](10, 100*time.Millisecond, WithClock[string](clock))
	require.NoError(t, err)

	c.Set("key", "old")

	now = now.Add(80 * time.Millisecond)
	c.Set("key", "new")

	// 80ms past the original insert but only 40ms past the overwrite
	now = now.Add(40 * time.Millisecond)
	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestHas_PurgesExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	c, err := New[string](10, 100*time.Millisecond, WithClock[string](clock))
	require.NoError(t, err)

	c.Set("key", "value")
	now = now.Add(150 * time.Millisecond)

	assert.False(t, c.Has("key"))
	assert.Equal(t, 0, c.Len())
}

func TestGetStats_HitRate(t *testing.T) {
	c, err := New[string](10, time.Minute)
	require.NoError(t, err)

	// No requests yet: rate is 0, not NaN
	assert.Equal(t, 0.0, c.GetStats().HitRate)

	c.Set("key", "value")
	_, _ = c.Get("key")
	_, _ = c.Get("missing")

	stats := c.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestResetStats(t *testing.T) {
	c, err := New[string](10, time.Minute)
	require.NoError(t, err)

	c.Set("key", "value")
	_, _ = c.Get("key")
	_, _ = c.Get("missing")

	c.ResetStats()

	stats := c.GetStats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
	assert.Equal(t, uint64(0), stats.Evictions)
	assert.Equal(t, 1, stats.Size, "entries survive a stats reset")
}

func TestCache_NilValueIsRetrievable(t *testing.T) {
	c, err := New[[]string](10, time.Minute)
	require.NoError(t, err)

	c.Set("key", nil)

	got, ok := c.Get("key")
	assert.True(t, ok, "a stored nil is present, not a miss")
	assert.Nil(t, got)
}

func TestDeleteAndClear(t *testing.T) {
	c, err := New[int](10, time.Minute)
	require.NoError(t, err)

	c.Set("key1", 1)
	c.Set("key2", 2)

	c.Delete("key1")
	c.Delete("missing") // No-op

	_, ok := c.Get("key1")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
