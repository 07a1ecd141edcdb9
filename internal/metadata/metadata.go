// Package metadata matches requests to the operations of an API document.
package metadata

import (
	"strings"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

// RoutingConfig supplies the path normalization rules of the host router.
type RoutingConfig interface {
	// CaseSensitive reports whether "/Pets" and "/pets" are different paths.
	CaseSensitive() bool
	// Strict reports whether "/pets/" and "/pets" are different paths.
	Strict() bool
}

// RequestMetadata describes what a request addresses in the API document.
// Fields are filled in order; a field is only set when the ones before it
// are, so Operation implies Path implies API.
type RequestMetadata struct {
	API *apidoc.Document
	// PathName is the matched template, empty when nothing matched.
	PathName    string
	Path        *apidoc.PathDescriptor
	Operation   *apidoc.OperationDescriptor
	Params      []*apidoc.ParameterDescriptor
	RequestBody *apidoc.RequestBodyDescriptor
	Security    []apidoc.SecurityRequirement
	// PathValues holds the raw values captured by path placeholders.
	PathValues map[string]string

	// Values and Body are filled in by the request parser. Values holds
	// coerced parameter values keyed by ParameterDescriptor.Key; Body is the
	// decoded request body.
	Values   map[string]any
	Body     any
	BodySize int64
}

// Resolve builds the metadata for a request. It never fails: missing
// matches leave the corresponding fields empty for the validator to report.
func Resolve(doc *apidoc.Document, routing RoutingConfig, method, path string) *RequestMetadata {
	md := &RequestMetadata{
		Params:   []*apidoc.ParameterDescriptor{},
		Security: []apidoc.SecurityRequirement{},
		Values:   map[string]any{},
	}
	rel, ok := md.setAPI(doc, routing, path)
	if !ok {
		return md
	}
	if !md.setPath(routing, rel) {
		return md
	}
	if !md.setOperation(method) {
		return md
	}
	md.setParams()
	md.setRequestBody()
	md.setSecurity()
	return md
}

// Normalize applies the routing rules to a path: lowercase unless case
// sensitive, one trailing slash removed unless strict.
func Normalize(routing RoutingConfig, path string) string {
	if routing == nil || !routing.CaseSensitive() {
		path = strings.ToLower(path)
	}
	return trimSlash(routing, path)
}

func trimSlash(routing RoutingConfig, path string) string {
	if (routing == nil || !routing.Strict()) && len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// setAPI accepts the document when the path lies under its base path and
// returns the path relative to it, in its original case.
func (md *RequestMetadata) setAPI(doc *apidoc.Document, routing RoutingConfig, path string) (string, bool) {
	if doc == nil {
		return "", false
	}
	path = trimSlash(routing, path)
	base := doc.BasePath
	if base == "" || base == "/" {
		md.API = doc
		return path, true
	}
	base = Normalize(routing, base)
	if len(path) < len(base) || Normalize(routing, path[:len(base)]) != base {
		return "", false
	}
	if len(path) > len(base) && path[len(base)] != '/' {
		return "", false
	}
	md.API = doc
	rel := path[len(base):]
	if rel == "" {
		rel = "/"
	}
	return rel, true
}

// setPath finds the declared template for rel. An exact match wins over
// any placeholder match; among placeholder matches the first declared wins.
func (md *RequestMetadata) setPath(routing RoutingConfig, rel string) bool {
	normalized := Normalize(routing, rel)
	var candidate *apidoc.PathDescriptor
	var values map[string]string

	for _, p := range md.API.Paths {
		if Normalize(routing, p.Template) == normalized {
			candidate, values = p, map[string]string{}
			break
		}
		if candidate != nil {
			continue
		}
		if captured, ok := compile(routing, p.Template).match(rel); ok {
			candidate, values = p, captured
		}
	}
	if candidate == nil {
		return false
	}
	md.PathName = candidate.Template
	md.Path = candidate
	md.PathValues = values
	return true
}

func (md *RequestMetadata) setOperation(method string) bool {
	md.Operation = md.Path.Operation(method)
	return md.Operation != nil
}

// setParams merges path-level parameters with operation parameters; an
// operation parameter replaces a path-level one with the same location and name.
func (md *RequestMetadata) setParams() {
	overridden := make(map[string]bool, len(md.Operation.Parameters))
	for _, p := range md.Operation.Parameters {
		overridden[p.Key()] = true
	}
	params := make([]*apidoc.ParameterDescriptor, 0, len(md.Path.Parameters)+len(md.Operation.Parameters))
	for _, p := range md.Path.Parameters {
		if !overridden[p.Key()] {
			params = append(params, p)
		}
	}
	md.Params = append(params, md.Operation.Parameters...)
}

func (md *RequestMetadata) setRequestBody() {
	md.RequestBody = md.Operation.RequestBody
}

func (md *RequestMetadata) setSecurity() {
	switch {
	case md.Operation.HasSecurity:
		md.Security = md.Operation.Security
	case len(md.API.Security) > 0:
		md.Security = md.API.Security
	}
	if md.Security == nil {
		md.Security = []apidoc.SecurityRequirement{}
	}
}

// Value returns the coerced value of the parameter with the given location
// and name.
func (md *RequestMetadata) Value(in apidoc.Location, name string) (any, bool) {
	v, ok := md.Values[(&apidoc.ParameterDescriptor{In: in, Name: name}).Key()]
	return v, ok
}

// Param returns the resolved parameter with the given location and name.
func (md *RequestMetadata) Param(in apidoc.Location, name string) *apidoc.ParameterDescriptor {
	key := (&apidoc.ParameterDescriptor{In: in, Name: name}).Key()
	for _, p := range md.Params {
		if p.Key() == key {
			return p
		}
	}
	return nil
}
