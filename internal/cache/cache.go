package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"llmarena/internal/core"
)

// LRUCache is a thread-safe LRU cache with per-entry expiration.
type LRUCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
}

type entry struct {
	key        string
	value      any
	expiration int64
}

// Options configures an LRUCache.
type Options struct {
	Capacity        int
	CleanupInterval time.Duration
}

// NewCache creates a new LRU Cache with default options.
func NewCache() *LRUCache {
	return NewCacheWithOptions(Options{})
}

// NewCacheWithOptions creates a new LRU Cache and starts its cleanup worker.
func NewCacheWithOptions(opts Options) *LRUCache {
	if opts.Capacity <= 0 {
		opts.Capacity = core.CacheDefaultCapacity
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = core.CacheCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LRUCache{
		capacity: opts.Capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		ctx:      ctx,
		cancel:   cancel,
	}

	go c.cleanupWorker(opts.CleanupInterval)
	return c
}

func (c *LRUCache) cleanupWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.ctx.Done():
			return
		}
	}
}

// Stop terminates the cache cleanup worker goroutine.
func (c *LRUCache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Set stores a value in the cache with the given TTL.
func (c *LRUCache) Set(key string, value any, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiration := time.Now().Add(duration).UnixNano()

	if elem, exists := c.items[key]; exists {
		e := elem.Value.(*entry)
		e.value = value
		e.expiration = expiration
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiration: expiration})

	for len(c.items) > c.capacity {
		c.removeElement(c.order.Back())
	}
}

// Get retrieves a value from the cache, returning false if not found or expired.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.items[key]
	if !found {
		return nil, false
	}

	e := elem.Value.(*entry)
	if time.Now().UnixNano() > e.expiration {
		c.removeElement(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Delete removes key from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

// Len returns the number of entries, including expired ones not yet cleaned up.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Clear clears all cache items
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Close stops the cache and releases resources.
func (c *LRUCache) Close() error {
	c.Stop()
	c.Clear()
	return nil
}

func (c *LRUCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}

func (c *LRUCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now > elem.Value.(*entry).expiration {
			c.removeElement(elem)
		}
		elem = prev
	}
}
