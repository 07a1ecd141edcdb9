// Package semantic works out what a declared response means for a mock:
// whether it carries one resource or a collection, and whether the
// resource data sits inside an envelope property.
package semantic

import (
	"sort"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

// Response is a declared response plus the shape derived from its schema.
type Response struct {
	Descriptor *apidoc.ResponseDescriptor
	Schema     *openapi3.Schema

	IsEmpty      bool
	IsCollection bool
	IsWrapped    bool
	// WrapperProperty names the envelope property holding the resource data.
	WrapperProperty string

	// LastModified and Location are set by the mock handler while it builds
	// the response.
	LastModified time.Time
	Location     string
}

// NewResponse analyses resp in the context of the path it belongs to. The
// request bodies of the path's put, post and patch operations are taken as
// the shape of a resource.
func NewResponse(resp *apidoc.ResponseDescriptor, path *apidoc.PathDescriptor) *Response {
	r := &Response{Descriptor: resp}
	if resp != nil {
		r.Schema = resp.Schema
	}
	if r.Schema == nil {
		r.IsEmpty = true
		return r
	}

	switch apidoc.SchemaType(r.Schema) {
	case openapi3.TypeArray:
		r.IsCollection = true
	case openapi3.TypeObject, "":
		r.detectWrapper(ResourceSchemas(path))
	}
	return r
}

func (r *Response) detectWrapper(resources []*openapi3.Schema) {
	if matchesAny(resources, r.Schema) {
		return
	}
	for _, name := range r.propertyNames() {
		ref := r.Schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		prop, isArray := ref.Value, false
		if apidoc.SchemaType(prop) == openapi3.TypeArray {
			isArray = true
			if prop.Items == nil || prop.Items.Value == nil {
				continue
			}
			prop = prop.Items.Value
		}
		switch apidoc.SchemaType(prop) {
		case openapi3.TypeObject, "":
		default:
			continue
		}
		if matchesAny(resources, prop) {
			r.IsWrapped = true
			r.WrapperProperty = name
			r.IsCollection = isArray
			return
		}
	}
}

// propertyNames lists the schema's properties in declaration order when it
// is known. Any others follow in sorted order.
func (r *Response) propertyNames() []string {
	var names []string
	seen := make(map[string]bool, len(r.Schema.Properties))
	if r.Descriptor != nil {
		for _, name := range r.Descriptor.PropertyOrder {
			if _, ok := r.Schema.Properties[name]; ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	var rest []string
	for name := range r.Schema.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Wrap places data in the envelope property when the response is wrapped.
// Sibling envelope properties that declare a default get it.
func (r *Response) Wrap(data any) any {
	if !r.IsWrapped {
		return data
	}
	envelope := make(map[string]any, len(r.Schema.Properties))
	for name, ref := range r.Schema.Properties {
		if name == r.WrapperProperty || ref == nil || ref.Value == nil {
			continue
		}
		if ref.Value.Default != nil {
			envelope[name] = ref.Value.Default
		}
	}
	envelope[r.WrapperProperty] = data
	return envelope
}

// Unwrap is the inverse of Wrap. Data that is not an envelope is returned
// unchanged.
func (r *Response) Unwrap(data any) any {
	if !r.IsWrapped {
		return data
	}
	if m, ok := data.(map[string]any); ok {
		if inner, ok := m[r.WrapperProperty]; ok {
			return inner
		}
	}
	return data
}

// ResourceSchemas returns the request body schemas of the put, post and
// patch operations of path.
func ResourceSchemas(path *apidoc.PathDescriptor) []*openapi3.Schema {
	if path == nil {
		return nil
	}
	var out []*openapi3.Schema
	for _, method := range []string{"post", "put", "patch"} {
		op := path.Operation(method)
		if op == nil {
			continue
		}
		for _, p := range op.Parameters {
			if p.In == apidoc.InBody && p.Schema != nil {
				out = append(out, p.Schema)
			}
		}
	}
	return out
}

func matchesAny(candidates []*openapi3.Schema, s *openapi3.Schema) bool {
	for _, c := range candidates {
		if Equivalent(c, s) {
			return true
		}
	}
	return false
}

// Equivalent reports whether a and b have the same type, the same number
// of properties, and same-typed properties under the same names. It looks
// at shape only, so unrelated schemas of identical shape are equivalent.
func Equivalent(a, b *openapi3.Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if apidoc.SchemaType(a) != apidoc.SchemaType(b) || len(a.Properties) != len(b.Properties) {
		return false
	}
	for name, ref := range a.Properties {
		other := b.Properties[name]
		if other == nil || ref == nil {
			return false
		}
		if apidoc.SchemaType(ref.Value) != apidoc.SchemaType(other.Value) {
			return false
		}
	}
	return true
}
