package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for exercising time-window expiry without sleeping.
type fakeClock struct {
	mux sync.Mutex
	at  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.at = c.at.Add(d)
}

func newTestGate(t *testing.T, duration time.Duration,
	loader *countingLoader) (*Gate[string, string], *fakeClock, *Switch) {
	t.Helper()
	clock := newFakeClock()
	sw := &Switch{}
	memo := NewMemo("gate_test", 8, loader.load)
	return NewGate("gate_test", duration, memo, loader.load, sw, clock.Now), clock, sw
}

func TestGate_ServesCachedWithinWindow(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a.txt": "v1"}}
	gate, clock, _ := newTestGate(t, 2*time.Second, loader)

	got, err := gate.Call(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	loader.values["/a.txt"] = "v2"
	clock.Advance(time.Second) // Still inside the 2s window.
	got, err = gate.Call(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", got, "Within the window the stale value is served")
	assert.Equal(t, 1, loader.calls)
}

func TestGate_ExpiryIsStrictlyGreaterThan(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a.txt": "v1"}}
	gate, clock, _ := newTestGate(t, 2*time.Second, loader)

	_, err := gate.Call(ctx, "/a.txt")
	require.NoError(t, err)
	loader.values["/a.txt"] = "v2"

	clock.Advance(2 * time.Second) // Elapsed == window: not expired yet.
	got, err := gate.Call(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", got, "An elapsed time exactly equal to the window must not expire the store")

	clock.Advance(time.Nanosecond) // Elapsed > window: the whole store goes.
	got, err = gate.Call(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", got, "Crossing the window boundary must discard stored values")
	assert.Equal(t, 2, loader.calls)
}

func TestGate_ExpiryClearsWholeStore(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "a1", "/b": "b1"}}
	gate, clock, _ := newTestGate(t, time.Second, loader)

	for _, key := range []string{"/a", "/b"} {
		_, err := gate.Call(ctx, key)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, loader.calls)

	clock.Advance(1500 * time.Millisecond)
	_, err := gate.Call(ctx, "/a") // First call past the boundary purges everything.
	require.NoError(t, err)
	_, err = gate.Call(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, 4, loader.calls, "Expiration clears the whole store, not just the crossing key")
}

func TestGate_ExpiryWindowResetsAtPurge(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "v"}}
	gate, clock, _ := newTestGate(t, time.Second, loader)

	_, err := gate.Call(ctx, "/a")
	require.NoError(t, err)

	clock.Advance(1500 * time.Millisecond)
	_, err = gate.Call(ctx, "/a") // Purge; window restarts here.
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)

	clock.Advance(900 * time.Millisecond) // Inside the restarted window.
	_, err = gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls, "The window must restart at the purge, not at the original start")
}

func TestGate_ZeroDurationNeverExpires(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "v"}}
	gate, clock, _ := newTestGate(t, 0, loader)

	_, err := gate.Call(ctx, "/a")
	require.NoError(t, err)

	clock.Advance(1000 * time.Hour)
	_, err = gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "A zero window means the gate never auto-expires")
}

func TestGate_DisabledSwitchBypassesAndPurges(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "v1"}}
	gate, _, sw := newTestGate(t, time.Hour, loader)

	_, err := gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)

	sw.Disable()
	loader.values["/a"] = "v2"
	got, err := gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got, "A disabled switch must pass calls straight to the raw loader")
	got, err = gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Equal(t, 3, loader.calls, "Every call while disabled reaches the loader")

	// Re-enabling does not resurrect entries purged while disabled.
	sw.Enable()
	loader.values["/a"] = "v3"
	got, err = gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "v3", got, "Stores purged while disabled stay empty until repopulated")
	assert.Equal(t, 4, loader.calls)
}

func TestGate_ClearResetsStoreAndWindow(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "v1"}}
	gate, clock, _ := newTestGate(t, 10*time.Second, loader)

	_, err := gate.Call(ctx, "/a")
	require.NoError(t, err)

	clock.Advance(9 * time.Second)
	gate.Clear()
	loader.values["/a"] = "v2"
	got, err := gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got, "Clear must drop stored values")
	assert.Equal(t, 2, loader.calls)

	clock.Advance(9 * time.Second) // 18s since construction, 9s since clear: still inside.
	_, err = gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls, "Clear must reset the invalidation timestamp")
}

func TestGate_NilSwitchUsesProcessDefault(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{values: map[string]string{"/a": "v1"}}
	memo := NewMemo("gate_test", 8, loader.load)
	gate := NewGate("gate_test", time.Hour, memo, loader.load, nil /*sw*/, nil /*now*/)

	_, err := gate.Call(ctx, "/a")
	require.NoError(t, err)

	Disable()
	defer Enable()
	loader.values["/a"] = "v2"
	got, err := gate.Call(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got, "The process-wide switch must govern gates built with a nil switch")
}
