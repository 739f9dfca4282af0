// Package store implements the local persistence layer: a single versioned
// JSON blob holding all sessions, preferences, and provider configuration,
// plus a separate key for offline-queue bookkeeping.
//
// The local store is the authoritative, always-available copy of every
// record. Reads tolerate a missing or corrupt blob by falling back to an
// empty default; a version mismatch runs a defensive one-shot migration
// before any data is handed to callers.
//
// All higher-level operations are read-modify-write cycles against the
// single blob. The store re-reads the latest blob immediately before each
// write, so two interleaved writers compose instead of clobbering each
// other's delta.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("store: not found")

// Storage is the low-level key-value blob backend.
//
// Implementations must make Write atomic at the whole-value level: after a
// crash the reader sees either the previous value or the new one, never a
// torn write.
type Storage interface {
	// Read returns the raw value for key, or ErrNotFound.
	Read(key string) ([]byte, error)

	// Write replaces the value for key.
	Write(key string, data []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
}

// FileStorage stores each key as a JSON file under a data directory.
// Writes go through a temp file and rename for whole-file atomicity.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the data directory if needed and returns a
// file-backed Storage.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the backing data directory.
func (fs *FileStorage) Dir() string {
	return fs.dir
}

func (fs *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(fs.dir, key+".json"), nil
}

// Read implements Storage.
func (fs *FileStorage) Read(key string) ([]byte, error) {
	path, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write implements Storage.
func (fs *FileStorage) Write(key string, data []byte) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Delete implements Storage.
func (fs *FileStorage) Delete(key string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// MemoryStorage is an in-memory Storage for tests.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailWrites makes every Write return an error, simulating quota
	// exhaustion.
	FailWrites bool
}

// NewMemoryStorage returns an empty in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Read implements Storage.
func (ms *MemoryStorage) Read(key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	data, ok := ms.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write implements Storage.
func (ms *MemoryStorage) Write(key string, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailWrites {
		return fmt.Errorf("storage quota exceeded")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	ms.data[key] = cp
	return nil
}

// Delete implements Storage.
func (ms *MemoryStorage) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, key)
	return nil
}
