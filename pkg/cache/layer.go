// Tempo memoizes the results of expensive calls in bounded in-memory stores.
// This module provides an interface on the bounded store, making the LRU layer
// and test fakes share the same API.

package cache

import "github.com/nobletooth/tempo/pkg/utils"

// Layer defines the interface for a generic bounded key-value store. Recency bookkeeping is up to the
// implementation; the only contract is that the store never holds more entries than its capacity.
type Layer[K comparable, V any] interface {
	// Get returns the value stored for the given key and a boolean indicating whether the key was found.
	// A successful lookup marks the entry as most recently used.
	Get(key K) (V, bool)
	// Add inserts or updates a key-value pair. It returns true if an item was evicted to make room.
	Add(key K, value V) bool
	Len() int                     // Returns the number of entries currently stored.
	Entries() []utils.Pair[K, V]  // Returns all entries ordered from least to most recently used.
	Purge()                       // Removes all items from the store.
}
