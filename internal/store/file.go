package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// storeFilePermissions keeps the store readable by the runtime user only.
	storeFilePermissions = 0600

	// storeDirPermissions is used when creating the store directory.
	storeDirPermissions = 0750
)

// FileBackend persists the item set as a JSON array in a single file.
//
// Saves write a temporary file in the same directory and rename it over
// the target, so a crash never leaves a truncated store behind.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the store file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the store file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads and decodes the store file. A missing file is an empty store.
func (b *FileBackend) Load(context.Context) ([]Item, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	items, err := DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("decoding store file %s: %w", b.path, err)
	}
	return items, nil
}

// Save encodes items and atomically replaces the store file.
func (b *FileBackend) Save(_ context.Context, items []Item) error {
	data, err := EncodeItems(items)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, storeDirPermissions); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Chmod(storeFilePermissions); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("setting store file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp store file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
