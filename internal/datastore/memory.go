package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Resource
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Resource),
		now:         time.Now,
	}
}

// Get retrieves a resource
func (m *MemoryStore) Get(ctx context.Context, collection, name string) (*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.collections[collection][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, collection, name)
	}
	return clone(r), nil
}

// Save creates or replaces a resource
func (m *MemoryStore) Save(ctx context.Context, collection, name string, r *Resource) (*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return clone(m.put(collection, name, r)), nil
}

func (m *MemoryStore) put(collection, name string, r *Resource) *Resource {
	items, ok := m.collections[collection]
	if !ok {
		items = make(map[string]*Resource)
		m.collections[collection] = items
	}

	saved := clone(r)
	now := m.now()
	saved.ModifiedOn = now
	if existing, ok := items[name]; ok {
		saved.CreatedOn = existing.CreatedOn
	} else if saved.CreatedOn.IsZero() {
		saved.CreatedOn = now
	}
	items[name] = saved
	return saved
}

// Delete removes a resource and returns it
func (m *MemoryStore) Delete(ctx context.Context, collection, name string) (*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.collections[collection][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, collection, name)
	}
	delete(m.collections[collection], name)
	if len(m.collections[collection]) == 0 {
		delete(m.collections, collection)
	}
	return r, nil
}

// List retrieves all resources of a collection
func (m *MemoryStore) List(ctx context.Context, collection string) ([]*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sorted(m.collections[collection]), nil
}

// DeleteCollection removes every resource of a collection and returns them
func (m *MemoryStore) DeleteCollection(ctx context.Context, collection string) ([]*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := sorted(m.collections[collection])
	delete(m.collections, collection)
	return out, nil
}

// Collections lists the collection keys
func (m *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.collections))
	for k := range m.collections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases nothing; the memory store has no resources to free.
func (m *MemoryStore) Close() error {
	return nil
}

func clone(r *Resource) *Resource {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

// sorted returns copies of the resources ordered by creation time, then name.
func sorted(items map[string]*Resource) []*Resource {
	out := make([]*Resource, 0, len(items))
	for _, r := range items {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
