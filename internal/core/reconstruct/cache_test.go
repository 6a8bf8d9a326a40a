package reconstruct

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/telemetry"
)

func nan() float64 { return math.NaN() }

func rec(asset string, v int) model.Reconstruction {
	return model.Reconstruction{AssetID: asset, State: model.State{"v": v}}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	one := entrySize(CacheKey{AssetID: "a", Ref: "1"}, model.State{"v": 1})
	c := NewCache(WithMaxBytes(2 * one))

	c.Put(CacheKey{AssetID: "a", Ref: "1"}, rec("a", 1))
	c.Put(CacheKey{AssetID: "b", Ref: "1"}, rec("b", 1))
	_, ok := c.Get(CacheKey{AssetID: "a", Ref: "1"})
	require.True(t, ok)

	c.Put(CacheKey{AssetID: "c", Ref: "1"}, rec("c", 1))

	_, ok = c.Get(CacheKey{AssetID: "b", Ref: "1"})
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get(CacheKey{AssetID: "a", Ref: "1"})
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
	assert.LessOrEqual(t, stats.Bytes, 2*one)
}

func TestCacheExpires(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(WithTTL(time.Minute), WithCacheClock(func() time.Time { return now }))

	c.Put(CacheKey{AssetID: "a", Ref: "1"}, rec("a", 1))
	_, ok := c.Get(CacheKey{AssetID: "a", Ref: "1"})
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(CacheKey{AssetID: "a", Ref: "1"})
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheSkipsOversizedState(t *testing.T) {
	c := NewCache(WithMaxBytes(8))
	c.Put(CacheKey{AssetID: "a", Ref: "1"}, model.Reconstruction{State: model.State{"long": "this will not fit"}})
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := NewCache()
	c.Put(CacheKey{AssetID: "a", Ref: "1"}, rec("a", 1))
	c.Put(CacheKey{AssetID: "a", Ref: "2"}, rec("a", 2))
	c.Put(CacheKey{AssetID: "b", Ref: "1"}, rec("b", 1))

	assert.True(t, c.Invalidate(CacheKey{AssetID: "a", Ref: "1"}))
	assert.False(t, c.Invalidate(CacheKey{AssetID: "a", Ref: "1"}))
	assert.Equal(t, 1, c.InvalidateAsset("a"))
	assert.Equal(t, 1, c.Stats().Entries)

	c.Clear()
	stats := c.Stats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Bytes)
}

func TestCacheMetrics(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	c := NewCache(WithCacheMetrics(m))

	c.Put(CacheKey{AssetID: "a", Ref: "1"}, rec("a", 1))
	c.Get(CacheKey{AssetID: "a", Ref: "1"})
	c.Get(CacheKey{AssetID: "a", Ref: "2"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEntries))
}

func TestCacheDropsPutAfterInvalidation(t *testing.T) {
	c := NewCache()
	key := CacheKey{AssetID: "a", Ref: "1"}

	gen := c.Generation("a")
	c.InvalidateAsset("a")
	assert.False(t, c.PutIfCurrent(key, rec("a", 1), gen))
	_, ok := c.Get(key)
	assert.False(t, ok)

	gen = c.Generation("a")
	c.Invalidate(CacheKey{AssetID: "b", Ref: "1"})
	assert.True(t, c.PutIfCurrent(key, rec("a", 1), gen), "other assets do not affect a")

	gen = c.Generation("a")
	c.Clear()
	assert.False(t, c.PutIfCurrent(key, rec("a", 1), gen))
	assert.Zero(t, c.Stats().Entries)
}

func TestCacheKeepsTimeAndRefKeysApart(t *testing.T) {
	c := NewCache()
	c.Put(CacheKey{AssetID: "a", Ref: "t:100", ByTime: true}, rec("a", 1))

	_, ok := c.Get(CacheKey{AssetID: "a", Ref: "t:100"})
	assert.False(t, ok)
}

func TestCacheCopiesNestedState(t *testing.T) {
	c := NewCache()
	key := CacheKey{AssetID: "a", Ref: "1"}
	in := model.Reconstruction{State: model.State{"inv": map[string]any{"gold": 1.0}}}
	c.Put(key, in)
	in.State["inv"].(map[string]any)["gold"] = 2.0

	out, ok := c.Get(key)
	require.True(t, ok)
	out.State["inv"].(map[string]any)["gold"] = 3.0

	again, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"gold": 1.0}, again.State["inv"])
}
