package hal

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
)

// unboundedCacheSize stands in for "no limit"; simplelru needs a positive
// size and allocates nothing up front.
const unboundedCacheSize = math.MaxInt32

type cachedConstant struct {
	ctx   *Context
	value Handle
}

type cacheKey struct {
	ctx  *Context
	name string
}

// constantCache holds computed constant property values of one class, keyed
// by context and property name. Cached handles stay protected until evicted.
// The capacity bounds the entries of all contexts together.
type constantCache struct {
	mu   sync.Mutex
	lru  *simplelru.LRU
	size int
}

func newConstantCache(size int) *constantCache {
	c := &constantCache{size: size}
	c.lru = c.newLRU(size)
	return c
}

func (c *constantCache) newLRU(size int) *simplelru.LRU {
	if size <= 0 {
		size = unboundedCacheSize
	}
	lru, err := simplelru.NewLRU(size, func(key, value interface{}) {
		cached := value.(cachedConstant)
		retains.Unprotect(cached.ctx, cached.value)
	})
	if err != nil {
		panic(err)
	}
	return lru
}

// Get returns the value of name cached for ctx and marks it most recently
// used.
func (c *constantCache) Get(ctx *Context, name string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(cacheKey{ctx: ctx, name: name})
	if !ok {
		return nil, false
	}
	return v.(cachedConstant).value, true
}

// Add caches value under name, evicting the least recently used entry when
// the cache is full.
func (c *constantCache) Add(ctx *Context, name string, value Handle) {
	retains.Protect(ctx, value)
	c.mu.Lock()
	defer c.mu.Unlock()
	// Add replaces silently; Remove fires the callback that releases the old
	// value.
	key := cacheKey{ctx: ctx, name: name}
	if c.lru.Contains(key) {
		c.lru.Remove(key)
	}
	c.lru.Add(key, cachedConstant{ctx: ctx, value: value})
}

// Resize sets a new capacity. The cache is emptied first.
func (c *constantCache) Resize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.size = size
	if size <= 0 {
		size = unboundedCacheSize
	}
	c.lru.Resize(size)
}

// Keys returns the cached property names, most recently used first. A name
// cached by several contexts is listed once, at its most recent use.
func (c *constantCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.lru.Keys()
	names := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		name := keys[i].(cacheKey).name
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// EvictOldest removes the least recently used entry.
func (c *constantCache) EvictOldest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _, ok := c.lru.RemoveOldest()
	return ok
}

func (c *constantCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *constantCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *constantCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// dropContext removes every entry computed in ctx.
func (c *constantCache) dropContext(ctx *Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.lru.Keys() {
		if k.(cacheKey).ctx == ctx {
			c.lru.Remove(k)
			n++
		}
	}
	return n
}
