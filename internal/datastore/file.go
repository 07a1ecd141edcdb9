package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore implements Store with one JSON file per collection, kept in
// memory and written through on every change.
type FileStore struct {
	mu       sync.Mutex
	basePath string
	memory   *MemoryStore
}

// NewFileStore creates a file store under basePath and loads any
// collections already saved there.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}

	fs := &FileStore{
		basePath: basePath,
		memory:   NewMemoryStore(),
	}
	if err := fs.loadAll(); err != nil {
		return nil, err
	}
	return fs, nil
}

// loadAll loads every collection file from disk
func (f *FileStore) loadAll() error {
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		collection, err := url.PathUnescape(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(f.basePath, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var items map[string]*Resource
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode %s: %w", entry.Name(), err)
		}
		if len(items) > 0 {
			f.memory.collections[collection] = items
		}
	}
	return nil
}

func (f *FileStore) file(collection string) string {
	return filepath.Join(f.basePath, url.PathEscape(collection)+".json")
}

// saveCollection writes a collection to disk, removing the file when the
// collection is empty.
func (f *FileStore) saveCollection(collection string) error {
	f.memory.mu.RLock()
	items := f.memory.collections[collection]
	var data []byte
	var err error
	if len(items) > 0 {
		data, err = json.MarshalIndent(items, "", "  ")
	}
	f.memory.mu.RUnlock()
	if err != nil {
		return err
	}

	path := f.file(collection)
	if data == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get retrieves a resource
func (f *FileStore) Get(ctx context.Context, collection, name string) (*Resource, error) {
	return f.memory.Get(ctx, collection, name)
}

// Save creates or replaces a resource and persists its collection
func (f *FileStore) Save(ctx context.Context, collection, name string, r *Resource) (*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	saved, err := f.memory.Save(ctx, collection, name, r)
	if err != nil {
		return nil, err
	}
	return saved, f.saveCollection(collection)
}

// Delete removes a resource and persists its collection
func (f *FileStore) Delete(ctx context.Context, collection, name string) (*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted, err := f.memory.Delete(ctx, collection, name)
	if err != nil {
		return nil, err
	}
	return deleted, f.saveCollection(collection)
}

// List retrieves all resources of a collection
func (f *FileStore) List(ctx context.Context, collection string) ([]*Resource, error) {
	return f.memory.List(ctx, collection)
}

// DeleteCollection removes a collection and its file
func (f *FileStore) DeleteCollection(ctx context.Context, collection string) ([]*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted, err := f.memory.DeleteCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return deleted, f.saveCollection(collection)
}

// Collections lists the collection keys
func (f *FileStore) Collections(ctx context.Context) ([]string, error) {
	return f.memory.Collections(ctx)
}

// Close closes the store
func (f *FileStore) Close() error {
	return nil
}
