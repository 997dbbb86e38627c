package hue

import (
	"sync"
	"time"
)

// cachedLight holds a light with the time it was read.
type cachedLight struct {
	light     Light
	fetchedAt time.Time
}

// LightCache is an optional short-TTL cache for light reads.
// It does NOT fetch from the network; the client fills it after reads and
// invalidates entries after writes. Toggle reads never consult it.
type LightCache struct {
	mu      sync.RWMutex
	lights  map[int]*cachedLight
	listAt  time.Time // time of the last full listing, zero if none
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewLightCache creates a cache.
// Parameters:
//   - ttl: time-to-live for entries (0 = use default 2 seconds)
func NewLightCache(ttl time.Duration) *LightCache {
	if ttl == 0 {
		ttl = 2 * time.Second
	}

	return &LightCache{
		lights:  make(map[int]*cachedLight),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get returns a cached light, or false if absent or stale.
func (c *LightCache) Get(id int) (Light, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.lights[id]
	if !ok || c.nowFunc().Sub(cached.fetchedAt) > c.ttl {
		return Light{}, false
	}
	return cached.light, true
}

// All returns every light if a full listing is cached and fresh.
func (c *LightCache) All() (map[int]Light, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.listAt.IsZero() || c.nowFunc().Sub(c.listAt) > c.ttl {
		return nil, false
	}
	result := make(map[int]Light, len(c.lights))
	for id, cached := range c.lights {
		result[id] = cached.light
	}
	return result, true
}

// Set stores one light.
func (c *LightCache) Set(light Light) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lights[light.ID] = &cachedLight{light: light, fetchedAt: c.nowFunc()}
}

// SetAll replaces the cache with a full listing.
func (c *LightCache) SetAll(lights map[int]Light) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	c.lights = make(map[int]*cachedLight, len(lights))
	for id, l := range lights {
		c.lights[id] = &cachedLight{light: l, fetchedAt: now}
	}
	c.listAt = now
}

// Invalidate removes one light and the full listing.
func (c *LightCache) Invalidate(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.lights, id)
	c.listAt = time.Time{}
}

// Clear removes all entries.
func (c *LightCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lights = make(map[int]*cachedLight)
	c.listAt = time.Time{}
}
