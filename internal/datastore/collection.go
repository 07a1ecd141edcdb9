package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/prasenjit/go-mockapi/internal/metadata"
)

// Collection is a handle on the resources under one collection path. It
// normalizes keys with the same routing rules used to match request paths,
// so "/Pets/Fido" and "/pets/fido" address the same resource unless routing
// is case sensitive.
type Collection struct {
	store   Store
	routing metadata.RoutingConfig
	path    string
	key     string
}

// Open returns a handle on the collection at path ("/api/pets").
func Open(store Store, routing metadata.RoutingConfig, path string) *Collection {
	path = strings.TrimSuffix(path, "/")
	return &Collection{
		store:   store,
		routing: routing,
		path:    path,
		key:     metadata.Normalize(routing, path),
	}
}

// Split divides a resource path into its collection path and "/name".
func Split(resourcePath string) (collection, name string) {
	resourcePath = strings.TrimSuffix(resourcePath, "/")
	i := strings.LastIndex(resourcePath, "/")
	if i < 0 {
		return "", "/" + resourcePath
	}
	return resourcePath[:i], resourcePath[i:]
}

// Path returns the collection path as opened.
func (c *Collection) Path() string {
	return c.path
}

func (c *Collection) nameKey(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return metadata.Normalize(c.routing, name)
}

// Get returns the resource called name ("/Fido"), or ErrNotFound.
func (c *Collection) Get(ctx context.Context, name string) (*Resource, error) {
	return c.store.Get(ctx, c.key, c.nameKey(name))
}

// Put stores data as the resource called name.
func (c *Collection) Put(ctx context.Context, name string, data json.RawMessage) (*Resource, error) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return c.store.Save(ctx, c.key, c.nameKey(name), &Resource{
		Collection: c.path,
		Name:       name,
		Data:       data,
	})
}

// Delete removes the resource called name. A missing resource returns
// (nil, nil).
func (c *Collection) Delete(ctx context.Context, name string) (*Resource, error) {
	r, err := c.store.Delete(ctx, c.key, c.nameKey(name))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// List returns every resource in the collection.
func (c *Collection) List(ctx context.Context) ([]*Resource, error) {
	return c.store.List(ctx, c.key)
}

// Clear removes every resource in the collection.
func (c *Collection) Clear(ctx context.Context) ([]*Resource, error) {
	return c.store.DeleteCollection(ctx, c.key)
}
