// This module implements the cached filesystem adapter: a Backend wrapped so that read operations
// (cat, list, stat, exists) are memoized per the declarative cache rules, while writes pass through
// untouched. Structured results cross the byte-oriented router through a JSON round trip; file
// contents stay raw bytes.

package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nobletooth/tempo/pkg/policy"
	"github.com/nobletooth/tempo/pkg/router"
)

// Cached operation names, also the metric labels and persist blob suffixes.
const (
	opCat    = "cat"
	opList   = "list"
	opStat   = "stat"
	opExists = "exists"
)

// CachedFS wraps a Backend with per-path temporal caching.
type CachedFS struct {
	backend Backend
	router  *router.Router
}

// New is the constructor for CachedFS. Rule compilation errors surface here, never on the call path.
func New(backend Backend, rules policy.Rules, opts ...router.Option) (*CachedFS, error) {
	resolver, err := policy.NewResolver(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache rules: %w", err)
	}

	ops := map[string]router.Operation{
		opCat: func(ctx context.Context, path string, _ ...string) ([]byte, error) {
			return backend.Cat(ctx, path)
		},
		opList: func(ctx context.Context, path string, _ ...string) ([]byte, error) {
			children, err := backend.List(ctx, path)
			if err != nil {
				return nil, err
			}
			return json.Marshal(children)
		},
		opStat: func(ctx context.Context, path string, _ ...string) ([]byte, error) {
			info, err := backend.Stat(ctx, path)
			if err != nil {
				return nil, err
			}
			return json.Marshal(info)
		},
		opExists: func(ctx context.Context, path string, _ ...string) ([]byte, error) {
			exists, err := backend.Exists(ctx, path)
			if err != nil {
				return nil, err
			}
			if exists {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		},
	}

	return &CachedFS{backend: backend, router: router.New(resolver, ops, opts...)}, nil
}

// Cat returns the (possibly cached) contents of the file at path.
func (c *CachedFS) Cat(ctx context.Context, path string) ([]byte, error) {
	return c.router.Dispatch(ctx, opCat, path)
}

// List returns the (possibly cached) paths directly under the given directory path.
func (c *CachedFS) List(ctx context.Context, path string) ([]string, error) {
	blob, err := c.router.Dispatch(ctx, opList, path)
	if err != nil {
		return nil, err
	}
	var children []string
	if err := json.Unmarshal(blob, &children); err != nil {
		return nil, fmt.Errorf("failed to decode cached listing for %s: %w", path, err)
	}
	return children, nil
}

// Stat returns the (possibly cached) description of the path.
func (c *CachedFS) Stat(ctx context.Context, path string) (FileInfo, error) {
	blob, err := c.router.Dispatch(ctx, opStat, path)
	if err != nil {
		return FileInfo{}, err
	}
	var info FileInfo
	if err := json.Unmarshal(blob, &info); err != nil {
		return FileInfo{}, fmt.Errorf("failed to decode cached stat for %s: %w", path, err)
	}
	return info, nil
}

// Exists reports whether the path exists, possibly from cache.
func (c *CachedFS) Exists(ctx context.Context, path string) (bool, error) {
	blob, err := c.router.Dispatch(ctx, opExists, path)
	if err != nil {
		return false, err
	}
	return len(blob) == 1 && blob[0] == 1, nil
}

// Open returns a reader over the (possibly cached) contents of the file at path. The reader is
// backed by the cached byte blob; closing it is a no-op.
func (c *CachedFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := c.Cat(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Write replaces the contents of the file at path, bypassing the cache entirely. Cached reads keep
// serving the previous contents until their window expires or the cache is cleared.
func (c *CachedFS) Write(ctx context.Context, path string, data []byte) error {
	return c.backend.Write(ctx, path, data)
}

// ClearCache clears the cache instances serving the given path's policy. All paths sharing that
// policy are cleared with it.
func (c *CachedFS) ClearCache(path string) {
	c.router.Invalidate(path)
}

// ClearAll clears every cache instance built so far.
func (c *CachedFS) ClearAll() {
	c.router.InvalidateAll()
}
