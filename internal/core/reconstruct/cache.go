package reconstruct

import (
	"container/list"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/telemetry"
)

const (
	DefaultCacheBytes = 64 << 20
	DefaultCacheTTL   = 5 * time.Minute
)

// CacheKey addresses one reconstruction. Time-addressed and ref-addressed
// reconstructions live in separate key spaces.
type CacheKey struct {
	AssetID string
	Ref     string
	ByTime  bool
}

// Generation identifies the invalidation state of one asset. Any
// invalidation touching the asset, or a Clear, produces a new Generation.
type Generation struct {
	epoch uint64
	asset uint64
}

type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Bytes     int64 `json:"bytes"`
	Entries   int   `json:"entries"`
}

// Cache is a least-recently-used store of reconstructions bounded by the
// serialized size of their states and by age. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	lru      *list.List
	entries  map[CacheKey]*list.Element
	bytes    int64
	maxBytes int64
	ttl      time.Duration
	now      func() time.Time
	metrics  *telemetry.Metrics

	epoch uint64
	gens  map[string]uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	key     CacheKey
	value   model.Reconstruction
	size    int64
	expires time.Time
}

type CacheOption func(*Cache)

// WithMaxBytes sets the byte budget. Zero or less keeps the default.
func WithMaxBytes(n int64) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithTTL sets entry lifetime. Zero disables expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func WithCacheMetrics(m *telemetry.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		lru:      list.New(),
		entries:  make(map[CacheKey]*list.Element),
		gens:     make(map[string]uint64),
		maxBytes: DefaultCacheBytes,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(key CacheKey) (model.Reconstruction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.miss()
		return model.Reconstruction{}, false
	}
	e := el.Value.(*cacheEntry)
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.removeLocked(el)
		c.evictions.Add(1)
		c.metrics.CacheEvicted(1)
		c.publishLocked()
		c.miss()
		return model.Reconstruction{}, false
	}

	c.lru.MoveToFront(el)
	c.hits.Add(1)
	c.metrics.CacheHit()

	out := e.value
	out.State = cloneState(e.value.State)
	return out, true
}

// Generation returns the current invalidation state of assetID. Read it
// before computing a value and hand it to PutIfCurrent.
func (c *Cache) Generation(assetID string) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Generation{epoch: c.epoch, asset: c.gens[assetID]}
}

// Put stores rec under key. A state larger than the whole budget is not
// cached.
func (c *Cache) Put(key CacheKey, rec model.Reconstruction) {
	c.put(key, rec, nil)
}

// PutIfCurrent stores rec only if key's asset has not been invalidated
// since gen was read. It reports whether the entry was stored.
func (c *Cache) PutIfCurrent(key CacheKey, rec model.Reconstruction, gen Generation) bool {
	return c.put(key, rec, &gen)
}

func (c *Cache) put(key CacheKey, rec model.Reconstruction, gen *Generation) bool {
	size := entrySize(key, rec.State)
	if size > c.maxBytes {
		return false
	}
	rec.State = cloneState(rec.State)
	rec.FromCache = false

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != nil && *gen != (Generation{epoch: c.epoch, asset: c.gens[key.AssetID]}) {
		return false
	}
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	e := &cacheEntry{key: key, value: rec, size: size, expires: c.now().Add(c.ttl)}
	c.entries[key] = c.lru.PushFront(e)
	c.bytes += size

	evicted := 0
	for c.bytes > c.maxBytes {
		c.removeLocked(c.lru.Back())
		evicted++
	}
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.metrics.CacheEvicted(evicted)
	}
	c.publishLocked()
	return true
}

func (c *Cache) Invalidate(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[key.AssetID]++
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	c.publishLocked()
	return true
}

// InvalidateAsset drops every cached reconstruction of assetID.
func (c *Cache) InvalidateAsset(assetID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[assetID]++
	n := 0
	for key, el := range c.entries {
		if key.AssetID == assetID {
			c.removeLocked(el)
			n++
		}
	}
	c.publishLocked()
	return n
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	clear(c.entries)
	c.epoch++
	clear(c.gens)
	c.bytes = 0
	c.publishLocked()
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Bytes:     c.bytes,
		Entries:   len(c.entries),
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func (c *Cache) removeLocked(el *list.Element) {
	e := c.lru.Remove(el).(*cacheEntry)
	delete(c.entries, e.key)
	c.bytes -= e.size
}

func (c *Cache) publishLocked() {
	c.metrics.CacheSize(c.bytes, len(c.entries))
}

func entrySize(key CacheKey, state model.State) int64 {
	n := int64(len(key.AssetID) + len(key.Ref))
	b, err := json.Marshal(state)
	if err != nil {
		return n
	}
	return n + int64(len(b))
}
