// This module implements the persistent memoizer: the keyed memoizer specialized to string keys and
// byte values, mirrored to a snapshot blob on disk. The store is hydrated once at construction and
// the full state is written through after every successful insertion. Persistence is best-effort:
// blob read/write failures are logged and counted, never surfaced as call errors, and the in-memory
// view stays correct regardless.
//
// The full-snapshot-per-write policy is O(store size) per insertion. That is fine for the small
// bounded stores this engine targets (capacity in the hundreds); it is a known scalability limit,
// not an oversight.

package cache

import (
	"context"
	"log/slog"

	"github.com/nobletooth/tempo/pkg/storage"
	"github.com/nobletooth/tempo/pkg/utils"
)

// PersistentMemo is a keyed memoizer whose contents survive process restarts via a snapshot blob.
type PersistentMemo struct {
	name     string // Metric label, typically the wrapped operation's name.
	blobPath string
	store    *LRU[string, []byte]
	load     LoaderFunc[string, []byte]
}

var _ MemoStore[string, []byte] = (*PersistentMemo)(nil)

// NewPersistentMemo is the constructor for PersistentMemo. It hydrates the store from a pre-existing
// blob at blobPath; a missing or corrupt blob means starting empty, never a construction failure.
func NewPersistentMemo(name, blobPath string, capacity int, load LoaderFunc[string, []byte]) *PersistentMemo {
	m := &PersistentMemo{name: name, blobPath: blobPath, store: NewLRU[string, []byte](capacity), load: load}

	entries, err := storage.LoadSnapshot(blobPath)
	if err != nil {
		snapshotFailuresMetric.WithLabelValues("load").Inc()
		slog.Warn("Failed to hydrate memoizer from snapshot blob, starting empty.",
			"name", name, "blob", blobPath, "error", err)
		return m
	}
	if len(entries) > capacity { // Keep only the most recently used entries that still fit.
		entries = entries[len(entries)-capacity:]
	}
	for _, entry := range entries { // Entries are ordered LRU to MRU; replaying keeps that order.
		m.store.Add(entry.Key, entry.Value)
	}
	return m
}

// Call returns the memoized value for the key, loading it on a miss. Every successful insertion
// writes the whole store state through to the blob before returning.
func (m *PersistentMemo) Call(ctx context.Context, key string) ([]byte, error) {
	if value, found := m.store.Get(key); found {
		hitsMetric.WithLabelValues(m.name).Inc()
		return value, nil
	}

	missesMetric.WithLabelValues(m.name).Inc()
	value, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	m.store.Add(key, value)
	m.writeThrough()
	return value, nil
}

// Clear empties the store and deletes the blob.
func (m *PersistentMemo) Clear() {
	m.store.Purge()
	if err := storage.RemoveSnapshot(m.blobPath); err != nil {
		snapshotFailuresMetric.WithLabelValues("remove").Inc()
		slog.Warn("Failed to remove snapshot blob.", "name", m.name, "blob", m.blobPath, "error", err)
	}
}

// writeThrough snapshots the current store state to the blob. Failures are non-fatal.
func (m *PersistentMemo) writeThrough() {
	entries := make([]utils.BlobEntry, 0, m.store.Len())
	for _, entry := range m.store.Entries() {
		entries = append(entries, utils.BlobEntry(entry))
	}
	if err := storage.SaveSnapshot(m.blobPath, entries); err != nil {
		snapshotFailuresMetric.WithLabelValues("save").Inc()
		slog.Warn("Failed to write snapshot blob, continuing unpersisted.",
			"name", m.name, "blob", m.blobPath, "error", err)
	}
}
