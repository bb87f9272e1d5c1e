// ABOUTME: Thread-safe in-process TTL cache with LRU eviction
// ABOUTME: Expired entries are swept by a background goroutine until Close

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry stores a value, its write time and its list element.
type memoryEntry struct {
	value     []byte
	timestamp time.Time
	element   *list.Element
}

// Memory is a size-limited TTL cache. The least recently used entry is
// evicted when the cache is full. Uses a doubly-linked list for O(1) eviction.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   *list.List // keys, least recently used at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewMemory creates a memory cache with the given TTL and maximum size.
// A background goroutine periodically removes expired entries.
func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Memory{
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup(sweepInterval(ttl))
	return c
}

// sweepInterval runs the sweep at most once a minute, sooner for short TTLs.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Get returns the cached value if present and not expired. A hit marks the
// entry as recently used.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Since(entry.timestamp) >= c.ttl {
		c.removeLocked(key, entry)
		return nil, false, nil
	}
	c.order.MoveToBack(entry.element)
	return entry.value, true, nil
}

// Set stores the value. If the cache is at capacity, the least recently
// used entry is evicted to make room.
func (c *Memory) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	now := time.Now()

	if entry, exists := c.entries[key]; exists {
		entry.value = value
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &memoryEntry{
		value:     value,
		timestamp: now,
		element:   elem,
	}
	return nil
}

// Len returns the number of entries, expired or not.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *Memory) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Memory) removeLocked(key string, entry *memoryEntry) {
	c.order.Remove(entry.element)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Memory) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Memory) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Memory) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
	return nil
}
