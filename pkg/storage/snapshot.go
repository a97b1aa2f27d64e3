// Tempo persists a memoizer's contents as a single snapshot blob: one file holding the full store
// state, overwritten on every insertion. This module implements the blob codec and its file I/O.
// The format is a length-prefixed record stream:
//
//	magic "TSNP" | version byte | uint32 record count | records...
//	record: uint32 key length | key bytes | uint32 value length | value bytes
//
// Records are ordered from least to most recently used so that replaying them through the store
// in order reproduces the recency ordering of the snapshotted store.

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nobletooth/tempo/pkg/utils"
)

const snapshotVersion = 1

var snapshotMagic = []byte("TSNP")

// maxRecordLen bounds a single key or value length on decode, guarding against corrupt blobs
// declaring absurd sizes before the allocation happens.
const maxRecordLen = 1 << 30

// EncodeSnapshot serializes the given entries into the snapshot blob format.
func EncodeSnapshot(entries []utils.BlobEntry) []byte {
	size := len(snapshotMagic) + 1 + 4 // Header: magic, version, record count.
	for _, entry := range entries {
		size += 4 + len(entry.Key) + 4 + len(entry.Value)
	}

	blob := make([]byte, 0, size)
	blob = append(blob, snapshotMagic...)
	blob = append(blob, snapshotVersion)
	blob = binary.BigEndian.AppendUint32(blob, uint32(len(entries)))
	for _, entry := range entries {
		blob = binary.BigEndian.AppendUint32(blob, uint32(len(entry.Key)))
		blob = append(blob, entry.Key...)
		blob = binary.BigEndian.AppendUint32(blob, uint32(len(entry.Value)))
		blob = append(blob, entry.Value...)
	}
	return blob
}

// DecodeSnapshot deserializes a snapshot blob back into its entries, ordered from least to most
// recently used.
func DecodeSnapshot(blob []byte) ([]utils.BlobEntry, error) {
	headerSize := len(snapshotMagic) + 1 + 4
	if len(blob) < headerSize {
		return nil, errors.New("snapshot blob is too short to contain a header")
	}
	if string(blob[:len(snapshotMagic)]) != string(snapshotMagic) {
		return nil, errors.New("snapshot blob has an unknown magic header")
	}
	if version := blob[len(snapshotMagic)]; version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}

	count := binary.BigEndian.Uint32(blob[len(snapshotMagic)+1:])
	offset := headerSize
	readChunk := func() ([]byte, error) {
		if len(blob) < offset+4 {
			return nil, errors.New("snapshot blob record is truncated")
		}
		chunkLen := int(binary.BigEndian.Uint32(blob[offset:]))
		offset += 4
		if chunkLen > maxRecordLen || len(blob) < offset+chunkLen {
			return nil, errors.New("snapshot blob record declares an invalid length")
		}
		chunk := blob[offset : offset+chunkLen]
		offset += chunkLen
		return chunk, nil
	}

	entries := make([]utils.BlobEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := readChunk()
		if err != nil {
			return nil, err
		}
		value, err := readChunk()
		if err != nil {
			return nil, err
		}
		// Copy the value out of the blob so entries don't pin the whole file in memory.
		entries = append(entries, utils.BlobEntry{Key: string(key), Value: append([]byte(nil), value...)})
	}
	return entries, nil
}

// SaveSnapshot writes the entries to the blob at the given path, replacing any previous snapshot.
// The blob is written to a temporary sibling file and renamed into place so readers never observe a
// partially written snapshot.
func SaveSnapshot(path string, entries []utils.BlobEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, EncodeSnapshot(entries), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace snapshot blob: %w", err)
	}
	return nil
}

// LoadSnapshot reads the blob at the given path. A missing blob is not an error; it returns no
// entries, matching a store that has never been persisted.
func LoadSnapshot(path string) ([]utils.BlobEntry, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read snapshot blob: %w", err)
	}
	return DecodeSnapshot(blob)
}

// RemoveSnapshot deletes the blob at the given path. Removing an absent blob is not an error.
func RemoveSnapshot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot blob: %w", err)
	}
	return nil
}
