// This module implements the in-memory backend: a thread-safe map of paths to contents. It exists
// for tests and as the reference behavior for other backends, the same way an in-memory filesystem
// backs most of the cached-filesystem test surface.

package fs

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemBackend is an in-memory Backend implementation.
type MemBackend struct {
	mux      sync.RWMutex
	files    map[string][]byte
	modTimes map[string]time.Time
}

var _ Backend = (*MemBackend)(nil)

// NewMemBackend is the constructor for MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{files: make(map[string][]byte), modTimes: make(map[string]time.Time)}
}

// Cat returns the contents of the file at path.
func (b *MemBackend) Cat(_ context.Context, filePath string) ([]byte, error) {
	b.mux.RLock()
	defer b.mux.RUnlock()
	data, found := b.files[filePath]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}
	return slices.Clone(data), nil
}

// List returns the paths directly under the given directory path.
func (b *MemBackend) List(_ context.Context, dirPath string) ([]string, error) {
	prefix := strings.TrimSuffix(dirPath, "/") + "/"
	if dirPath == "" || dirPath == "/" {
		prefix = "/"
	}

	b.mux.RLock()
	defer b.mux.RUnlock()
	seen := make(map[string]bool)
	var children []string
	for filePath := range b.files {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rest := strings.TrimPrefix(filePath, prefix)
		child := prefix + rest
		if cut := strings.IndexByte(rest, '/'); cut >= 0 { // Only direct children; collapse deeper paths.
			child = prefix + rest[:cut]
		}
		if !seen[child] {
			seen[child] = true
			children = append(children, child)
		}
	}
	slices.Sort(children)
	return children, nil
}

// Stat describes the path. Directories are synthesized from file prefixes.
func (b *MemBackend) Stat(_ context.Context, filePath string) (FileInfo, error) {
	b.mux.RLock()
	defer b.mux.RUnlock()
	if data, found := b.files[filePath]; found {
		return FileInfo{Path: filePath, Size: int64(len(data)), ModTime: b.modTimes[filePath]}, nil
	}
	prefix := strings.TrimSuffix(filePath, "/") + "/"
	for candidate := range b.files {
		if strings.HasPrefix(candidate, prefix) {
			return FileInfo{Path: path.Clean(filePath), IsDir: true}, nil
		}
	}
	return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, filePath)
}

// Exists reports whether the path exists as a file or a directory prefix.
func (b *MemBackend) Exists(ctx context.Context, filePath string) (bool, error) {
	if _, err := b.Stat(ctx, filePath); err != nil {
		return false, nil
	}
	return true, nil
}

// Write replaces the contents of the file at path.
func (b *MemBackend) Write(_ context.Context, filePath string, data []byte) error {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.files[filePath] = slices.Clone(data)
	b.modTimes[filePath] = time.Now()
	return nil
}
