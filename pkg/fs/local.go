// This module implements the local-disk backend rooted at a directory. Paths are interpreted
// relative to the root; escaping it via `..` is rejected.

package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend is a Backend over a local directory tree.
type LocalBackend struct {
	root string
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend is the constructor for LocalBackend.
func NewLocalBackend(root string) (*LocalBackend, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backend root: %w", err)
	}
	return &LocalBackend{root: absRoot}, nil
}

// resolve maps a backend path onto the rooted tree, rejecting escapes.
func (b *LocalBackend) resolve(path string) (string, error) {
	resolved := filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if resolved != b.root && !strings.HasPrefix(resolved, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the backend root", path)
	}
	return resolved, nil
}

// Cat returns the full contents of the file at path.
func (b *LocalBackend) Cat(_ context.Context, path string) ([]byte, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// List returns the paths directly under the given directory path.
func (b *LocalBackend) List(_ context.Context, path string) ([]string, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	children := make([]string, 0, len(dirEntries))
	base := strings.TrimSuffix(path, "/")
	for _, dirEntry := range dirEntries {
		children = append(children, base+"/"+dirEntry.Name())
	}
	return children, nil
}

// Stat describes the path.
func (b *LocalBackend) Stat(_ context.Context, path string) (FileInfo, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}
	stat, err := os.Stat(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return FileInfo{Path: path, Size: stat.Size(), ModTime: stat.ModTime(), IsDir: stat.IsDir()}, nil
}

// Exists reports whether the path exists.
func (b *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := b.Stat(ctx, path); errors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Write replaces the contents of the file at path, creating parent directories as needed.
func (b *LocalBackend) Write(_ context.Context, path string, data []byte) error {
	resolved, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
