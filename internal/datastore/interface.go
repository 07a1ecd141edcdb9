// Package datastore persists the resources created through mock requests.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Resource is a stored mock resource. Collection and Name keep the case
// they were created with; stores address them by normalized keys.
type Resource struct {
	Collection string          `json:"collection"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data"`
	CreatedOn  time.Time       `json:"createdOn"`
	ModifiedOn time.Time       `json:"modifiedOn"`
}

// Path returns the URL path of the resource.
func (r *Resource) Path() string {
	return r.Collection + r.Name
}

// Store defines the interface for resource persistence. Collection and
// name arguments are keys already normalized by the caller.
type Store interface {
	Get(ctx context.Context, collection, name string) (*Resource, error)
	// Save creates or replaces a resource. CreatedOn is kept from the
	// existing resource when there is one.
	Save(ctx context.Context, collection, name string, r *Resource) (*Resource, error)
	Delete(ctx context.Context, collection, name string) (*Resource, error)
	// List returns the resources of a collection ordered by creation time.
	List(ctx context.Context, collection string) ([]*Resource, error)
	DeleteCollection(ctx context.Context, collection string) ([]*Resource, error)
	// Collections returns the keys of all non-empty collections, sorted.
	Collections(ctx context.Context) ([]string, error)
	Close() error
}
