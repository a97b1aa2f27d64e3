// This module implements the bounded LRU store backing every memoizer.
// Entries live in a doubly linked list ordered by recency (head = most recently used) with a map index
// for lookups. When the store is full, the tail entry (least recently used) is evicted before insertion.
// Both read hits and writes refresh recency.

package cache

import (
	"sync"

	"github.com/nobletooth/tempo/pkg/utils"
)

// lruNode is one entry of the recency list.
type lruNode[K comparable, V any] struct {
	next  *lruNode[K, V]
	prev  *lruNode[K, V]
	key   K
	value V
}

// LRU is a thread-safe, fixed-capacity, in-memory store with least-recently-used eviction.
type LRU[K comparable, V any] struct {
	capacity int                    // Maximum number of entries the store can hold.
	index    map[K]*lruNode[K, V]   // Provides lookup for an entry by its key.
	head     *lruNode[K, V]         // Most recently used entry.
	tail     *lruNode[K, V]         // Least recently used entry; the next eviction victim.
	mux      sync.Mutex             // Provides thread-safety for concurrent operations on the store.
}

var _ Layer[string, int] = (*LRU[string, int])(nil)

// NewLRU is the constructor for LRU. Capacities below 1 are a caller bug and are clamped to 1.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		utils.RaiseInvariant("lru", "non_positive_capacity",
			"Invalid capacity has been given to the LRU store.", "capacity", capacity)
		capacity = 1
	}
	return &LRU[K, V]{capacity: capacity, index: make(map[K]*lruNode[K, V], capacity)}
}

// unlink removes the node from the recency list without touching the index.
func (c *LRU[K, V]) unlink(n *lruNode[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else { // Node is the head.
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else { // Node is the tail.
		c.tail = n.prev
	}
	n.next, n.prev = nil, nil
}

// pushFront places the node at the head of the recency list, marking it most recently used.
func (c *LRU[K, V]) pushFront(n *lruNode[K, V]) {
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	} else { // List was empty.
		c.tail = n
	}
	c.head = n
}

// Get retrieves a value from the store for a given key. A hit moves the entry to the front of the
// recency list.
func (c *LRU[K, V]) Get(key K) (V, bool /*found*/) {
	c.mux.Lock()
	defer c.mux.Unlock()

	node, found := c.index[key]
	if !found {
		return *new(V), false
	}
	if c.head != node { // Already the most recently used entry, nothing to move.
		c.unlink(node)
		c.pushFront(node)
	}
	return node.value, true
}

// Add inserts or updates a key-value pair in the store. Updates refresh recency. If the store is full,
// the least recently used entry is evicted first. It returns true if an eviction occurred.
func (c *LRU[K, V]) Add(key K, value V) /*evictionOccurred*/ bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	// Update existing entry.
	if node, found := c.index[key]; found {
		node.value = value
		if c.head != node {
			c.unlink(node)
			c.pushFront(node)
		}
		return false
	}

	evicted := false
	if len(c.index) >= c.capacity { // Evict the least recently used entry to make room.
		victim := c.tail
		c.unlink(victim)
		delete(c.index, victim.key)
		evictionsMetric.Inc()
		evicted = true
	}

	node := &lruNode[K, V]{key: key, value: value}
	c.pushFront(node)
	c.index[key] = node
	return evicted
}

// Len returns the number of entries currently stored.
func (c *LRU[K, V]) Len() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.index)
}

// Entries returns all entries ordered from least to most recently used. Replaying the returned slice
// through Add in order reproduces the same recency ordering, which is what snapshot hydration relies on.
func (c *LRU[K, V]) Entries() []utils.Pair[K, V] {
	c.mux.Lock()
	defer c.mux.Unlock()

	entries := make([]utils.Pair[K, V], 0, len(c.index))
	for node := c.tail; node != nil; node = node.prev {
		entries = append(entries, utils.Pair[K, V]{Key: node.key, Value: node.value})
	}
	return entries
}

// Purge removes all items from the store.
func (c *LRU[K, V]) Purge() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.index = make(map[K]*lruNode[K, V], c.capacity)
	c.head, c.tail = nil, nil
}
