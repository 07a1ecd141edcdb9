package mock

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/httperr"
)

// queryResource returns one stored resource, or the response's example or
// default when nothing is stored.
func (m *Mock) queryResource(x *exchange) error {
	collection, name := datastore.Split(x.c.Request.URL.Path)
	r, err := datastore.Open(m.store, m.routing, collection).Get(x.ctx(), name)
	switch {
	case err == nil:
		x.resp.LastModified = r.ModifiedOn
		data, err := decode(r.Data)
		if err != nil {
			return err
		}
		return m.send(x, data, false)

	case errors.Is(err, datastore.ErrNotFound):
		if def := defaultValue(x.resp); def != nil {
			x.resp.LastModified = m.now()
			return m.send(x, def, true)
		}
		return httperr.New(httperr.KindNotFound, http.StatusNotFound,
			"%s %s does not exist", x.c.Request.Method, x.c.Request.URL.Path)
	}
	return fmt.Errorf("get resource: %w", err)
}

// editResource replaces (PUT), merges (POST, PATCH) or deletes (DELETE) the
// resource at the request path.
func (m *Mock) editResource(x *exchange) error {
	collectionPath, name := datastore.Split(x.c.Request.URL.Path)
	collection := datastore.Open(m.store, m.routing, collectionPath)

	if x.c.Request.Method == http.MethodDelete {
		deleted, err := collection.Delete(x.ctx(), name)
		if err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		if x.resp.IsCollection {
			return m.sendCollection(x, collection)
		}
		if deleted == nil {
			return m.send(x, nil, false)
		}
		x.resp.LastModified = deleted.ModifiedOn
		data, err := decode(deleted.Data)
		if err != nil {
			return err
		}
		return m.send(x, data, false)
	}

	data := requestData(x.md)
	if x.c.Request.Method != http.MethodPut {
		existing, err := collection.Get(x.ctx(), name)
		switch {
		case err == nil:
			old, err := decode(existing.Data)
			if err != nil {
				return err
			}
			data = merge(old, data)
		case !errors.Is(err, datastore.ErrNotFound):
			return fmt.Errorf("get resource: %w", err)
		}
	}

	saved, err := m.put(x, collection, name, data)
	if err != nil {
		return err
	}
	x.resp.LastModified = saved.ModifiedOn
	if x.resp.IsCollection {
		return m.sendCollection(x, collection)
	}
	return m.send(x, data, false)
}

func (m *Mock) put(x *exchange, collection *datastore.Collection, name string, data any) (*datastore.Resource, error) {
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	saved, err := collection.Put(x.ctx(), name, raw)
	if err != nil {
		return nil, fmt.Errorf("save resource: %w", err)
	}
	return saved, nil
}

// sendCollection responds with every resource of collection.
func (m *Mock) sendCollection(x *exchange, collection *datastore.Collection) error {
	list, err := collection.List(x.ctx())
	if err != nil {
		return fmt.Errorf("list collection: %w", err)
	}
	items, err := dataOf(list)
	if err != nil {
		return err
	}
	x.resp.LastModified = lastModified(list, x.resp.LastModified)
	return m.send(x, items, false)
}
