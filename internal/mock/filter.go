package mock

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/metadata"
	"github.com/prasenjit/go-mockapi/internal/semantic"
)

// criterion requires the stored value at path to match value.
type criterion struct {
	path  string
	value any
}

// criteria turns the query and header parameters of the request into
// filter criteria. Parameters not sent, or sent with their default value,
// do not filter. When the resource schema is known only parameters naming
// one of its properties filter; otherwise only query parameters do.
func criteria(md *metadata.RequestMetadata) []criterion {
	schema := resourceSchema(md)
	var out []criterion
	for _, p := range md.Params {
		if p.In != apidoc.InQuery && p.In != apidoc.InHeader {
			continue
		}
		v, ok := md.Values[p.Key()]
		if !ok || v == nil {
			continue
		}
		value := coerce.JSONValue(p.Schema, v)
		if p.Default != nil && reflect.DeepEqual(value, coerce.JSONValue(p.Schema, p.Default)) {
			continue
		}
		if schema != nil {
			root, _, _ := strings.Cut(p.Name, ".")
			if _, ok := schema.Properties[root]; !ok {
				continue
			}
		} else if p.In != apidoc.InQuery {
			continue
		}
		out = append(out, criterion{path: p.Name, value: value})
	}
	return out
}

// resourceSchema returns the schema of one resource of the path: the body
// of its put/post/patch operations, else the items of the GET response.
func resourceSchema(md *metadata.RequestMetadata) *openapi3.Schema {
	if schemas := semantic.ResourceSchemas(md.Path); len(schemas) > 0 {
		s := schemas[0]
		if apidoc.SchemaType(s) == openapi3.TypeArray && s.Items != nil {
			return s.Items.Value
		}
		return s
	}
	if op := md.Path.Operation("get"); op != nil {
		for _, r := range op.Responses {
			if r.Schema != nil && apidoc.SchemaType(r.Schema) == openapi3.TypeArray && r.Schema.Items != nil {
				return r.Schema.Items.Value
			}
		}
	}
	return nil
}

func filterResources(list []*datastore.Resource, crit []criterion) []*datastore.Resource {
	if len(crit) == 0 {
		return list
	}
	out := list[:0:0]
	for _, r := range list {
		if matchAll(r.Data, crit) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(data []byte, crit []criterion) bool {
	for _, c := range crit {
		if !matchValue(gjson.GetBytes(data, c.path), c.value) {
			return false
		}
	}
	return true
}

// matchValue reports whether the stored result contains want. Arrays match
// when every wanted item is present; objects when every wanted member matches.
func matchValue(got gjson.Result, want any) bool {
	if !got.Exists() {
		return false
	}
	switch w := want.(type) {
	case []any:
		if !got.IsArray() {
			return false
		}
		items := got.Array()
		for _, wi := range w {
			found := false
			for _, gi := range items {
				if matchValue(gi, wi) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case map[string]any:
		if !got.IsObject() {
			return false
		}
		for k, wv := range w {
			if !matchValue(got.Get(k), wv) {
				return false
			}
		}
		return true
	case bool:
		return (got.Type == gjson.True || got.Type == gjson.False) && got.Bool() == w
	case float64:
		return got.Type == gjson.Number && got.Float() == w
	case string:
		return got.String() == w
	case time.Time:
		return got.String() == w.Format(time.RFC3339Nano)
	}
	return got.String() == fmt.Sprint(want)
}
