// This module implements the keyed memoizer: a bounded LRU store wrapped around an arbitrary
// fallible loader. A hit returns the stored value without invoking the loader; a miss invokes the
// loader and stores the result on success. Loader failures propagate to the caller and are never
// stored (no negative caching).
//
// Concurrent calls for the same missing key may each invoke the loader; the last writer's value
// wins in the store. This is accepted for idempotent loaders and keeps the call path lock-free
// around the (possibly slow) load.

package cache

import "context"

// LoaderFunc computes the value for a key. It is assumed to be idempotent within the validity
// window of the store wrapping it.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// MemoStore is the store surface the temporal gate operates on.
type MemoStore[K comparable, V any] interface {
	// Call returns the memoized value for the key, loading and storing it on a miss.
	Call(ctx context.Context, key K) (V, error)
	// Clear atomically empties the store. In-flight loads are unaffected; they insert into the
	// emptied store when they complete.
	Clear()
}

// Memo is an in-memory keyed memoizer.
type Memo[K comparable, V any] struct {
	name  string // Metric label, typically the wrapped operation's name.
	store *LRU[K, V]
	load  LoaderFunc[K, V]
}

var _ MemoStore[string, int] = (*Memo[string, int])(nil)

// NewMemo is the constructor for Memo.
func NewMemo[K comparable, V any](name string, capacity int, load LoaderFunc[K, V]) *Memo[K, V] {
	return &Memo[K, V]{name: name, store: NewLRU[K, V](capacity), load: load}
}

// Call returns the memoized value for the key. On a miss the loader runs on the calling goroutine;
// its error, if any, is returned verbatim and nothing is stored.
func (m *Memo[K, V]) Call(ctx context.Context, key K) (V, error) {
	if value, found := m.store.Get(key); found {
		hitsMetric.WithLabelValues(m.name).Inc()
		return value, nil
	}

	missesMetric.WithLabelValues(m.name).Inc()
	value, err := m.load(ctx, key)
	if err != nil {
		return *new(V), err
	}
	m.store.Add(key, value)
	return value, nil
}

// Clear empties the store.
func (m *Memo[K, V]) Clear() {
	m.store.Purge()
}
