package webid

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 10_000
)

// CacheKey is the cache key for a (webId, audience) pair.
func CacheKey(webID, audience string) string {
	return webID + ":" + audience
}

// call is one in-flight upstream resolution. res is written once by the
// leader before done is closed.
type call struct {
	done chan struct{}
	res  Resolution
}

// Cache holds settled resolutions with a TTL plus the set of resolutions
// still in flight. Both sit behind one mutex: a key is either pending,
// cached, or absent, and the transition from pending to cached happens in a
// single critical section.
//
// One Cache is created per process and handed to the Resolver.
type Cache struct {
	mu      sync.Mutex
	values  *expirable.LRU[string, Resolution]
	pending map[string]*call
}

// NewCache creates a cache. Expired entries read as absent; the LRU also
// sweeps them in the background. A capacity of zero means unlimited.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		values:  expirable.NewLRU[string, Resolution](capacity, nil, ttl),
		pending: make(map[string]*call),
	}
}

type lookup int

const (
	lookupHit lookup = iota
	lookupPending
	lookupLeader
)

// begin checks the key and, if it is neither pending nor cached, registers
// a new pending call that the caller must settle.
func (c *Cache) begin(key string) (Resolution, *call, lookup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pending[key]; ok {
		return Resolution{}, p, lookupPending
	}
	if res, ok := c.values.Get(key); ok {
		return res, nil, lookupHit
	}

	p := &call{done: make(chan struct{})}
	c.pending[key] = p
	return Resolution{}, p, lookupLeader
}

// settle publishes the result of a pending call. Cacheable results become
// visible to readers in the same critical section that removes the pending
// entry.
func (c *Cache) settle(key string, p *call, res Resolution, cacheable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cacheable {
		c.values.Add(key, res)
	}
	delete(c.pending, key)
	p.res = res
	close(p.done)
}

// Invalidate drops the cached value for a key. A pending call is left to finish.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.Remove(key)
}

// Len is the number of live cached values.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Len()
}

func (c *Cache) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
