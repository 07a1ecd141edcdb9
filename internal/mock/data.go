package mock

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/metadata"
	"github.com/prasenjit/go-mockapi/internal/semantic"
)

// requestData returns the resource data carried by the request: the
// decoded body, or the form fields when the operation takes formData.
func requestData(md *metadata.RequestMetadata) any {
	if md.Body != nil {
		return md.Body
	}
	var form map[string]any
	for _, p := range md.Params {
		if p.In != apidoc.InFormData {
			continue
		}
		v, ok := md.Values[p.Key()]
		if !ok || v == nil {
			continue
		}
		if form == nil {
			form = make(map[string]any)
		}
		form[p.Name] = coerce.JSONValue(p.Schema, v)
	}
	if form == nil {
		return nil
	}
	return form
}

// itemSchema returns the schema of a single resource in the request body.
func itemSchema(md *metadata.RequestMetadata) *openapi3.Schema {
	for _, p := range md.Params {
		if p.In != apidoc.InBody || p.Schema == nil {
			continue
		}
		if apidoc.SchemaType(p.Schema) == openapi3.TypeArray && p.Schema.Items != nil {
			return p.Schema.Items.Value
		}
		return p.Schema
	}
	return nil
}

// defaultValue returns the data a response declares for when nothing is
// stored: its example, else its schema default or example.
func defaultValue(r *semantic.Response) any {
	if r.Descriptor != nil && r.Descriptor.Example != nil {
		return r.Descriptor.Example
	}
	if r.Schema != nil {
		if r.Schema.Default != nil {
			return r.Schema.Default
		}
		return r.Schema.Example
	}
	return nil
}

func decode(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode stored resource: %w", err)
	}
	return v, nil
}

func encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return b, nil
}

func dataOf(list []*datastore.Resource) ([]any, error) {
	out := make([]any, 0, len(list))
	for _, r := range list {
		v, err := decode(r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// merge overlays patch onto base. Nested objects are merged; everything
// else in patch replaces the value in base.
func merge(base, patch any) any {
	b, ok1 := base.(map[string]any)
	p, ok2 := patch.(map[string]any)
	if !ok1 || !ok2 {
		if patch == nil {
			return base
		}
		return patch
	}
	out := make(map[string]any, len(b)+len(p))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range p {
		out[k] = merge(out[k], v)
	}
	return out
}
