package apidoc

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Location is where a parameter is carried in the request.
type Location string

// Supported parameter locations
const (
	InPath     Location = "path"
	InQuery    Location = "query"
	InHeader   Location = "header"
	InCookie   Location = "cookie"
	InFormData Location = "formData"
	InBody     Location = "body"
)

// SchemeType is the kind of a security scheme as far as presence checks go.
type SchemeType string

// Supported security scheme types
const (
	SchemeBasic  SchemeType = "basic"
	SchemeAPIKey SchemeType = "apiKey"
	SchemeOther  SchemeType = "other"
)

// Document is an immutable snapshot of a loaded API definition.
// It is never modified after Load returns; a reload builds a new Document.
type Document struct {
	Title       string
	Version     string
	SpecVersion string
	// BasePath is normalized: leading slash, no trailing slash, "/" for root.
	BasePath        string
	Paths           []*PathDescriptor
	Security        []SecurityRequirement
	SecuritySchemes map[string]*SecurityScheme
}

// Path returns the path declared with exactly this template, or nil.
func (d *Document) Path(template string) *PathDescriptor {
	for _, p := range d.Paths {
		if p.Template == template {
			return p
		}
	}
	return nil
}

// PathDescriptor is a declared URL template and its operations.
type PathDescriptor struct {
	Template   string
	Parameters []*ParameterDescriptor
	// Operations is keyed by lowercase method.
	Operations map[string]*OperationDescriptor
	// Methods lists the lowercase methods in declaration order.
	Methods []string
}

// Operation returns the operation for method (any case), or nil.
func (p *PathDescriptor) Operation(method string) *OperationDescriptor {
	if p == nil {
		return nil
	}
	return p.Operations[strings.ToLower(method)]
}

// OperationDescriptor is a single method on a path.
type OperationDescriptor struct {
	Method      string
	OperationID string
	Summary     string
	Consumes    []string
	Produces    []string
	Parameters  []*ParameterDescriptor
	RequestBody *RequestBodyDescriptor
	// Responses are in declaration order.
	Responses []*ResponseDescriptor
	Security  []SecurityRequirement
	// HasSecurity is true when the operation declares its own security,
	// even an empty list that disables the document-level requirements.
	HasSecurity bool
}

// Response returns the response declared for code ("200", "default"), or nil.
func (o *OperationDescriptor) Response(code string) *ResponseDescriptor {
	for _, r := range o.Responses {
		if r.Code == code {
			return r
		}
	}
	return nil
}

// ParameterDescriptor is a declared request parameter.
type ParameterDescriptor struct {
	In       Location
	Name     string
	Required bool
	// Style is the declared serialization style, empty when not declared.
	Style   string
	Explode *bool
	Schema  *openapi3.Schema
	Default any
	Example any
}

// Key identifies a parameter by location and name. Header names are
// case-insensitive.
func (p *ParameterDescriptor) Key() string {
	name := p.Name
	if p.In == InHeader {
		name = strings.ToLower(name)
	}
	return string(p.In) + ":" + name
}

// RequestBodyDescriptor is the declared request body of an operation.
type RequestBodyDescriptor struct {
	Required   bool
	Schema     *openapi3.Schema
	MediaTypes []string
}

// ResponseDescriptor is a declared response.
type ResponseDescriptor struct {
	// Code is the status key as declared: "200", "2XX" or "default".
	Code        string
	Description string
	Schema      *openapi3.Schema
	Headers     []*HeaderDescriptor
	Example     any
	MediaTypes  []string
	// PropertyOrder lists the schema's properties in declaration order.
	PropertyOrder []string
}

// StatusCode returns the numeric status when Code is a plain number.
func (r *ResponseDescriptor) StatusCode() (int, bool) {
	code, err := strconv.Atoi(r.Code)
	if err != nil {
		return 0, false
	}
	return code, true
}

// IsDefault reports whether this is the "default" response.
func (r *ResponseDescriptor) IsDefault() bool {
	return r.Code == "default"
}

// HeaderDescriptor is a declared response header.
type HeaderDescriptor struct {
	Name    string
	Schema  *openapi3.Schema
	Example any
}

// SecurityScheme is a declared security scheme, reduced to what a
// presence check needs.
type SecurityScheme struct {
	Name string
	Type SchemeType
	// In is "header" or "query" for apiKey schemes.
	In string
	// ParamName is the header or query parameter name for apiKey schemes.
	ParamName string
}

// SecurityRequirement lists scheme names that must all be satisfied.
type SecurityRequirement []string

// SchemaType returns the first declared type of s, or "" when untyped.
func SchemaType(s *openapi3.Schema) string {
	if s == nil || s.Type == nil || len(s.Type.Slice()) == 0 {
		return ""
	}
	return s.Type.Slice()[0]
}
