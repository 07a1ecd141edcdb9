// Package coerce turns raw request strings into typed parameter values.
//
// Decoding happens in two steps. A style handler undoes the serialization
// convention of the parameter (matrix, label, form, simple, spaceDelimited,
// pipeDelimited, deepObject) and yields a scalar, a list or a key/value map.
// Each leaf is then converted by Primitive according to its schema.
//
// Typed results are int64 for integers, float64 for numbers, bool, []byte
// for byte and binary strings, time.Time for date and date-time strings,
// []any for arrays and map[string]any for objects.
package coerce

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/httperr"
)

// Serialization styles
const (
	StyleMatrix         = "matrix"
	StyleLabel          = "label"
	StyleForm           = "form"
	StyleSimple         = "simple"
	StyleSpaceDelimited = "spaceDelimited"
	StylePipeDelimited  = "pipeDelimited"
	StyleDeepObject     = "deepObject"
)

// Param coerces raw into the value described by p.
//
// raw is normally a string. Repeated query keys arrive as []string. For
// deepObject parameters and exploded form objects raw is the query string
// subset holding the parameter's keys. Any other type, including nil, is
// returned unchanged so already typed defaults pass through.
func Param(p *apidoc.ParameterDescriptor, raw any) (any, error) {
	var values []string
	switch v := raw.(type) {
	case string:
		values = []string{v}
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
		values = v
	default:
		return raw, nil
	}

	style := Style(p)
	d, err := decode(style, p.Name, Explode(p), p.Schema, values)
	if err != nil {
		return nil, invalid(p, raw, err)
	}
	value, err := convert(p.Schema, d)
	if err != nil {
		return nil, invalid(p, raw, err)
	}
	return value, nil
}

// Style returns the declared style of p or the default for its location.
func Style(p *apidoc.ParameterDescriptor) string {
	if p.Style != "" {
		return p.Style
	}
	switch p.In {
	case apidoc.InQuery, apidoc.InCookie, apidoc.InFormData:
		return StyleForm
	default:
		return StyleSimple
	}
}

// Explode returns the declared explode flag of p. Only form style
// explodes by default.
func Explode(p *apidoc.ParameterDescriptor) bool {
	if p.Explode != nil {
		return *p.Explode
	}
	return Style(p) == StyleForm
}

func invalid(p *apidoc.ParameterDescriptor, raw any, cause error) *httperr.Error {
	shown := fmt.Sprint(raw)
	if list, ok := raw.([]string); ok {
		shown = strings.Join(list, ",")
	}
	return httperr.Wrap(cause, httperr.KindCoercion, http.StatusBadRequest,
		"The %q %s parameter is invalid (%s)", p.Name, p.In, shown).
		With("name", p.Name).
		With("in", string(p.In)).
		With("value", shown)
}

// convert applies the schema to a decoded intermediate value.
func convert(schema *openapi3.Schema, d decoded) (any, error) {
	switch apidoc.SchemaType(schema) {
	case openapi3.TypeArray:
		var items *openapi3.Schema
		if schema.Items != nil {
			items = schema.Items.Value
		}
		list := d.list
		if list == nil && d.isScalar {
			list = []string{d.scalar}
		}
		out := make([]any, 0, len(list))
		for i, s := range list {
			v, err := Primitive(items, s)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil

	case openapi3.TypeObject:
		out := make(map[string]any, len(d.fields))
		for _, f := range d.fields {
			v, err := Primitive(propertySchema(schema, f.key), f.value)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", f.key, err)
			}
			out[f.key] = v
		}
		return out, nil
	}

	s := d.scalar
	if !d.isScalar && len(d.list) > 0 {
		s = d.list[0]
	}
	return Primitive(schema, s)
}

func propertySchema(schema *openapi3.Schema, name string) *openapi3.Schema {
	if ref := schema.Properties[name]; ref != nil {
		return ref.Value
	}
	if ap := schema.AdditionalProperties.Schema; ap != nil {
		return ap.Value
	}
	return nil
}
