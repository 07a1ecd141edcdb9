package mock

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prasenjit/go-mockapi/internal/datastore"
)

// queryCollection lists (GET, HEAD, OPTIONS) or deletes (DELETE) the
// resources of the collection at the request path that match the filter
// parameters of the request.
func (m *Mock) queryCollection(x *exchange) error {
	collection := datastore.Open(m.store, m.routing, x.c.Request.URL.Path)
	list, err := collection.List(x.ctx())
	if err != nil {
		return fmt.Errorf("list collection: %w", err)
	}
	list = filterResources(list, criteria(x.md))

	if x.c.Request.Method == http.MethodDelete {
		for _, r := range list {
			_, name := datastore.Split(r.Path())
			if _, err := collection.Delete(x.ctx(), name); err != nil {
				return fmt.Errorf("delete resource: %w", err)
			}
		}
	} else if len(list) == 0 {
		if def := defaultValue(x.resp); def != nil {
			x.resp.LastModified = m.now()
			return m.send(x, def, true)
		}
	}

	items, err := dataOf(list)
	if err != nil {
		return err
	}
	x.resp.LastModified = lastModified(list, m.now())
	if x.resp.IsCollection {
		return m.send(x, items, false)
	}
	if len(items) == 0 {
		return m.send(x, nil, false)
	}
	return m.send(x, items[0], false)
}

// editCollection adds the request body to the collection. POST adds or
// replaces by name, PATCH merges into existing resources, and PUT replaces
// the whole collection. A body that is an array adds one resource per item.
func (m *Mock) editCollection(x *exchange) error {
	collection := datastore.Open(m.store, m.routing, x.c.Request.URL.Path)
	method := x.c.Request.Method

	var items []any
	switch body := requestData(x.md).(type) {
	case []any:
		items = body
	case nil:
		items = []any{map[string]any{}}
	default:
		items = []any{body}
	}

	if method == http.MethodPut {
		if _, err := collection.Clear(x.ctx()); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}

	schema := itemSchema(x.md)
	var saved []*datastore.Resource
	var savedData []any
	for _, item := range items {
		name, err := m.resourceName(x.ctx(), collection, item, schema)
		if err != nil {
			return err
		}
		if method == http.MethodPatch {
			existing, err := collection.Get(x.ctx(), name)
			switch {
			case err == nil:
				old, err := decode(existing.Data)
				if err != nil {
					return err
				}
				item = merge(old, item)
			case !errors.Is(err, datastore.ErrNotFound):
				return fmt.Errorf("get resource: %w", err)
			}
		}
		r, err := m.put(x, collection, name, item)
		if err != nil {
			return err
		}
		saved = append(saved, r)
		savedData = append(savedData, item)
	}

	if len(saved) == 1 {
		x.resp.Location = saved[0].Path()
	} else {
		x.resp.Location = collection.Path()
	}
	x.resp.LastModified = lastModified(saved, m.now())

	if x.resp.IsCollection {
		return m.sendCollection(x, collection)
	}
	return m.send(x, savedData[0], false)
}

// lastModified returns the latest modification time in list, or fallback
// when list is empty.
func lastModified(list []*datastore.Resource, fallback time.Time) time.Time {
	if len(list) == 0 {
		return fallback
	}
	latest := list[0].ModifiedOn
	for _, r := range list[1:] {
		if r.ModifiedOn.After(latest) {
			latest = r.ModifiedOn
		}
	}
	return latest
}
