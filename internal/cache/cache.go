package cache

import (
	"sync"

	"github.com/shottracker/shottracker/pkg/core"
)

// RifleCache keeps rifle profiles by ID so repeated calculations against the
// same rifle skip the database.
type RifleCache struct {
	mu     sync.RWMutex
	rifles map[string]core.Rifle
}

func NewRifleCache() *RifleCache {
	return &RifleCache{
		rifles: make(map[string]core.Rifle),
	}
}

// Get retrieves a rifle by ID
func (c *RifleCache) Get(id string) (core.Rifle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rifles[id]
	return r, ok
}

// Set stores a rifle under its ID
func (c *RifleCache) Set(r core.Rifle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rifles[r.ID] = r
}

// SetAll replaces the cache contents
func (c *RifleCache) SetAll(rifles []core.Rifle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rifles = make(map[string]core.Rifle, len(rifles))
	for _, r := range rifles {
		c.rifles[r.ID] = r
	}
}

func (c *RifleCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rifles, id)
}

func (c *RifleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rifles = make(map[string]core.Rifle)
}

func (c *RifleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rifles)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

// Add increases the counter by n
func (c *SafeCounter) Add(n int) {
	c.mu.Lock()
	c.v += n
	c.mu.Unlock()
}
