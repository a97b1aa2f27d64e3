// Tempo wraps filesystem-like backends with temporal caching. This module defines the capability
// set the cache layer requires from a backend: a handful of named, path-keyed operations returning
// values or errors. The backend is otherwise opaque; anything exposing these calls can be wrapped.

package fs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by backends when a path doesn't exist.
var ErrNotFound = errors.New("fs: path not found")

// FileInfo describes one path, backend-agnostically.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	IsDir   bool      `json:"isDir"`
}

// Backend is the set of named operations the cache layer delegates to. Results are assumed to be
// referentially stable within the configured cache windows; backends with side-effecting reads must
// not be wrapped.
type Backend interface {
	// Cat returns the full contents of the file at path.
	Cat(ctx context.Context, path string) ([]byte, error)
	// List returns the paths directly under the given directory path.
	List(ctx context.Context, path string) ([]string, error)
	// Stat describes the path.
	Stat(ctx context.Context, path string) (FileInfo, error)
	// Exists reports whether the path exists.
	Exists(ctx context.Context, path string) (bool, error)
	// Write replaces the contents of the file at path. Writes always bypass the cache layer.
	Write(ctx context.Context, path string, data []byte) error
}
