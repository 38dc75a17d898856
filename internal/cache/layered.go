package cache

import "time"

// LayeredCache implements a two-tier cache: a fast near tier in front of a
// durable far tier
type LayeredCache struct {
	near    Cache
	far     Cache
	nearTTL time.Duration
}

// NewLayeredCache creates a memory tier over a disk tier
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewTieredCache(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL), memoryTTL)
}

// NewTieredCache layers any two caches. nearTTL caps how long promoted
// entries stay in the near tier.
func NewTieredCache(near, far Cache, nearTTL time.Duration) *LayeredCache {
	return &LayeredCache{near: near, far: far, nearTTL: nearTTL}
}

// Get retrieves a value from the cache (checks near tier first, then far)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.near.Get(key); found {
		return val, true
	}

	if val, found := c.far.Get(key); found {
		// Promote to near tier
		_ = c.near.Set(key, val, c.nearTTL)
		return val, true
	}

	return nil, false
}

// Set stores a value in both tiers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	nearTTL := ttl
	if c.nearTTL > 0 && (nearTTL == 0 || nearTTL > c.nearTTL) {
		nearTTL = c.nearTTL
	}
	if err := c.near.Set(key, value, nearTTL); err != nil {
		return err
	}

	return c.far.Set(key, value, ttl)
}

// Delete removes a value from both tiers
func (c *LayeredCache) Delete(key string) error {
	_ = c.near.Delete(key)
	return c.far.Delete(key)
}

// Clear removes all values from both tiers
func (c *LayeredCache) Clear() error {
	_ = c.near.Clear()
	return c.far.Clear()
}
