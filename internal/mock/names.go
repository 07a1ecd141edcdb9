package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
	"github.com/prasenjit/go-mockapi/internal/datastore"
)

// nameProperties are the property names that identify a resource, in
// order of preference.
var nameProperties = []string{"id", "key", "slug", "code", "number", "num", "nbr", "username", "name"}

// resourceName returns "/<name>" for a new resource. The name comes from an
// identifying property of item; when item has no value for that property
// one is generated and written into item. Generated names never collide
// with a resource already in collection.
func (m *Mock) resourceName(ctx context.Context, collection *datastore.Collection, item any, schema *openapi3.Schema) (string, error) {
	newUUID := func() any { return uuid.NewString() }

	obj, ok := item.(map[string]any)
	if !ok {
		_, name, err := freeName(ctx, collection, newUUID)
		return name, err
	}

	prop, propSchema := nameProperty(obj, schema)
	if prop == "" {
		_, name, err := freeName(ctx, collection, newUUID)
		return name, err
	}
	if v, ok := obj[prop]; ok && v != nil {
		if s, err := coerce.Format(propSchema, v); err == nil && s != "" {
			return "/" + s, nil
		}
	}

	next := newUUID
	switch apidoc.SchemaType(propSchema) {
	case openapi3.TypeInteger, openapi3.TypeNumber:
		next = func() any { return m.seq.Add(1) }
	}
	v, name, err := freeName(ctx, collection, next)
	if err != nil {
		return "", err
	}
	obj[prop] = v
	return name, nil
}

// freeName draws values from next until one names no stored resource.
func freeName(ctx context.Context, collection *datastore.Collection, next func() any) (any, string, error) {
	for {
		v := next()
		name := "/" + fmt.Sprint(v)
		_, err := collection.Get(ctx, name)
		if errors.Is(err, datastore.ErrNotFound) {
			return v, name, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("get resource: %w", err)
		}
	}
}

// nameProperty finds the identifying property: a well-known name declared
// in the schema or present in the data, else the first required scalar
// property of the schema.
func nameProperty(obj map[string]any, schema *openapi3.Schema) (string, *openapi3.Schema) {
	var props openapi3.Schemas
	if schema != nil {
		props = schema.Properties
	}

	for _, candidate := range nameProperties {
		for name, ref := range props {
			if strings.EqualFold(name, candidate) && ref != nil && scalar(ref.Value) {
				return name, ref.Value
			}
		}
	}
	for _, candidate := range nameProperties {
		for name, v := range obj {
			if strings.EqualFold(name, candidate) && scalarValue(v) {
				return name, nil
			}
		}
	}
	if schema != nil {
		for _, name := range schema.Required {
			if ref := props[name]; ref != nil && scalar(ref.Value) {
				return name, ref.Value
			}
		}
	}
	return "", nil
}

func scalar(s *openapi3.Schema) bool {
	switch apidoc.SchemaType(s) {
	case openapi3.TypeString, openapi3.TypeInteger, openapi3.TypeNumber:
		return true
	}
	return false
}

func scalarValue(v any) bool {
	switch v.(type) {
	case string, float64, int64, int:
		return true
	}
	return false
}
