// This module implements the temporal gate: a wall-clock expiration check layered on top of a
// memoizer. The gate tracks when its store was last invalidated and, once more than the configured
// window has elapsed, purges the whole store before delegating. The check runs lazily on the calling
// path; there is no background timer. The comparison is always now minus lastInvalidation, so
// manually advanced or skewed clocks are tolerated.

package cache

import (
	"context"
	"sync"
	"time"
)

// Gate wraps a memo store with time-window invalidation and the global disable switch.
type Gate[K comparable, V any] struct {
	name     string        // Metric label, typically the wrapped operation's name.
	duration time.Duration // Zero means the gate never auto-expires; only manual clears apply.
	store    MemoStore[K, V]
	raw      LoaderFunc[K, V] // Called directly, bypassing the store, while the switch is disabled.
	sw       *Switch
	now      func() time.Time

	mux              sync.Mutex // Guards lastInvalidation.
	lastInvalidation time.Time
}

// NewGate is the constructor for Gate. A nil switch falls back to the process-wide default; a nil
// clock falls back to time.Now.
func NewGate[K comparable, V any](name string, duration time.Duration, store MemoStore[K, V],
	raw LoaderFunc[K, V], sw *Switch, now func() time.Time) *Gate[K, V] {
	if sw == nil {
		sw = DefaultSwitch()
	}
	if now == nil {
		now = time.Now
	}
	return &Gate[K, V]{
		name: name, duration: duration,
		store: store, raw: raw,
		sw: sw, now: now,
		lastInvalidation: now(),
	}
}

// Call serves the key through the gate. While the switch is disabled the store is purged and the raw
// loader is invoked directly. Otherwise the elapsed window is checked first: values stored before an
// expired boundary are discarded, never reused for the crossing call (strict greater-than).
func (g *Gate[K, V]) Call(ctx context.Context, key K) (V, error) {
	if g.sw.Disabled() {
		g.store.Clear()
		return g.raw(ctx, key)
	}

	g.mux.Lock()
	if now := g.now(); g.duration > 0 && now.Sub(g.lastInvalidation) > g.duration {
		g.store.Clear()
		g.lastInvalidation = now
		expirationsMetric.WithLabelValues(g.name).Inc()
	}
	g.mux.Unlock()

	return g.store.Call(ctx, key)
}

// Clear wipes the store contents and resets the invalidation timestamp.
func (g *Gate[K, V]) Clear() {
	g.mux.Lock()
	g.lastInvalidation = g.now()
	g.mux.Unlock()
	g.store.Clear()
}
