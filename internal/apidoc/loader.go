package apidoc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes load failures.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// LoadError is returned when a document cannot be read, parsed,
// dereferenced or validated.
type LoadError struct {
	Code     ErrorCode
	Message  string
	Location string
	Cause    error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Location != "" {
		msg = e.Location + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// formMediaTypes are the request content types whose object properties are
// exposed as formData parameters.
var formMediaTypes = []string{"application/x-www-form-urlencoded", "multipart/form-data"}

// LoadFile reads and loads the document at path. Relative $refs resolve
// against the file's directory.
func LoadFile(ctx context.Context, path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: "resolve path", Location: path, Cause: err}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: "read file", Location: abs, Cause: err}
	}
	return load(ctx, data, abs)
}

// Load loads a document from raw YAML or JSON. Swagger 2.0 documents are
// converted to the OpenAPI 3 model; their consumes/produces and basePath
// are taken from the raw document.
func Load(ctx context.Context, data []byte) (*Document, error) {
	return load(ctx, data, "")
}

func load(ctx context.Context, data []byte, location string) (*Document, error) {
	l, err := readLayout(data)
	if err != nil {
		return nil, &LoadError{Code: ParseError, Message: "cannot read document", Location: location, Cause: err}
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	var base *url.URL
	if location != "" {
		base = &url.URL{Path: filepath.ToSlash(location)}
	}

	var t *openapi3.T
	switch l.major {
	case 3:
		if base != nil {
			t, err = loader.LoadFromDataWithPath(data, base)
		} else {
			t, err = loader.LoadFromData(data)
		}
		if err != nil {
			return nil, &LoadError{Code: ParseError, Message: "cannot parse OpenAPI document", Location: location, Cause: err}
		}
	case 2:
		t, err = convertV2(data)
		if err != nil {
			return nil, &LoadError{Code: ConversionError, Message: "cannot convert Swagger 2.0 document", Location: location, Cause: err}
		}
		if err := loader.ResolveRefsIn(t, base); err != nil {
			return nil, &LoadError{Code: ParseError, Message: "cannot resolve references", Location: location, Cause: err}
		}
	}

	if err := t.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, &LoadError{Code: ValidationError, Message: "invalid API document", Location: location, Cause: err}
	}

	return build(t, l), nil
}

// convertV2 unmarshals a Swagger 2.0 document and converts it to v3.
func convertV2(data []byte) (*openapi3.T, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	jsonData, err := json.Marshal(jsonCompatible(raw))
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(jsonData, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// jsonCompatible turns YAML mappings with non-string keys into string-keyed maps.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = jsonCompatible(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = jsonCompatible(item)
		}
		return val
	default:
		return v
	}
}

func build(t *openapi3.T, l *layout) *Document {
	doc := &Document{
		SpecVersion:     t.OpenAPI,
		SecuritySchemes: make(map[string]*SecurityScheme),
		Security:        securityList(t.Security),
	}
	if t.Info != nil {
		doc.Title = t.Info.Title
		doc.Version = t.Info.Version
	}
	if l.major == 2 {
		doc.SpecVersion = "2.0"
		doc.BasePath = normalizeBasePath(l.basePath)
	} else {
		doc.BasePath = normalizeBasePath(serverPath(l.serverURL))
	}

	if t.Components != nil {
		for name, ref := range t.Components.SecuritySchemes {
			if ref == nil || ref.Value == nil {
				continue
			}
			doc.SecuritySchemes[name] = buildScheme(name, ref.Value)
		}
	}

	if t.Paths == nil {
		return doc
	}
	templates := l.paths
	if len(templates) == 0 {
		templates = sortedKeys(t.Paths.Map())
	}
	for _, template := range templates {
		item := t.Paths.Value(template)
		if item == nil {
			continue
		}
		doc.Paths = append(doc.Paths, buildPath(template, item, l))
	}
	return doc
}

func buildPath(template string, item *openapi3.PathItem, l *layout) *PathDescriptor {
	pd := &PathDescriptor{
		Template:   template,
		Parameters: buildParams(item.Parameters),
		Operations: make(map[string]*OperationDescriptor),
	}
	methods := l.methods[template]
	if len(methods) == 0 {
		for m := range item.Operations() {
			methods = append(methods, strings.ToLower(m))
		}
		sort.Strings(methods)
	}
	for _, method := range methods {
		op := item.GetOperation(strings.ToUpper(method))
		if op == nil {
			continue
		}
		pd.Operations[method] = buildOperation(method, template, op, l)
		pd.Methods = append(pd.Methods, method)
	}
	return pd
}

func buildOperation(method, template string, op *openapi3.Operation, l *layout) *OperationDescriptor {
	od := &OperationDescriptor{
		Method:      method,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Parameters:  buildParams(op.Parameters),
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		params, body := buildRequestBody(op.RequestBody.Value)
		od.Parameters = append(od.Parameters, params...)
		od.RequestBody = body
	}

	if op.Responses != nil {
		responses := op.Responses.Map()
		codes := l.responses[opKey(method, template)]
		if len(codes) == 0 {
			codes = sortedKeys(responses)
		}
		for _, code := range codes {
			ref := responses[code]
			if ref == nil || ref.Value == nil {
				continue
			}
			rd, media := buildResponse(code, ref.Value)
			if l.major == 2 {
				media = ""
			}
			rd.PropertyOrder = l.properties[propertiesKey(opKey(method, template), code, media)]
			od.Responses = append(od.Responses, rd)
		}
	}

	if op.Security != nil {
		od.HasSecurity = true
		od.Security = securityList(*op.Security)
	}

	key := opKey(method, template)
	if l.major == 2 {
		od.Consumes = l.consumes
		if list, ok := l.opConsumes[key]; ok {
			od.Consumes = list
		}
		od.Produces = l.produces
		if list, ok := l.opProduces[key]; ok {
			od.Produces = list
		}
	} else {
		if od.RequestBody != nil {
			od.Consumes = od.RequestBody.MediaTypes
		}
		od.Produces = responseMediaTypes(od.Responses)
	}
	return od
}

func buildParams(refs openapi3.Parameters) []*ParameterDescriptor {
	out := make([]*ParameterDescriptor, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		pd := &ParameterDescriptor{
			In:       Location(p.In),
			Name:     p.Name,
			Required: p.Required || p.In == openapi3.ParameterInPath,
			Style:    p.Style,
			Explode:  p.Explode,
			Example:  p.Example,
		}
		if p.Schema != nil {
			pd.Schema = p.Schema.Value
		} else if _, mt := pickMedia(p.Content); mt != nil && mt.Schema != nil {
			pd.Schema = mt.Schema.Value
		}
		if pd.Schema != nil {
			pd.Default = pd.Schema.Default
			if pd.Example == nil {
				pd.Example = pd.Schema.Example
			}
		}
		out = append(out, pd)
	}
	return out
}

// buildRequestBody exposes a request body both as body/formData parameters
// and as a descriptor.
func buildRequestBody(rb *openapi3.RequestBody) ([]*ParameterDescriptor, *RequestBodyDescriptor) {
	desc := &RequestBodyDescriptor{
		Required:   rb.Required,
		MediaTypes: sortedKeys(rb.Content),
	}
	if _, mt := pickMedia(rb.Content); mt != nil && mt.Schema != nil {
		desc.Schema = mt.Schema.Value
	}

	for _, form := range formMediaTypes {
		mt := rb.Content[form]
		if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
			continue
		}
		schema := mt.Schema.Value
		var params []*ParameterDescriptor
		for _, name := range sortedKeys(schema.Properties) {
			prop := schema.Properties[name]
			if prop == nil || prop.Value == nil {
				continue
			}
			params = append(params, &ParameterDescriptor{
				In:       InFormData,
				Name:     name,
				Required: contains(schema.Required, name),
				Schema:   prop.Value,
				Default:  prop.Value.Default,
				Example:  prop.Value.Example,
			})
		}
		return params, desc
	}

	name := "body"
	if v, ok := rb.Extensions["x-originalParamName"].(string); ok && v != "" {
		name = v
	}
	return []*ParameterDescriptor{{
		In:       InBody,
		Name:     name,
		Required: rb.Required,
		Schema:   desc.Schema,
	}}, desc
}

// buildResponse also returns the media type whose schema was taken.
func buildResponse(code string, r *openapi3.Response) (*ResponseDescriptor, string) {
	rd := &ResponseDescriptor{
		Code:       code,
		MediaTypes: sortedKeys(r.Content),
	}
	if r.Description != nil {
		rd.Description = *r.Description
	}
	media, mt := pickMedia(r.Content)
	if mt != nil {
		if mt.Schema != nil {
			rd.Schema = mt.Schema.Value
		}
		rd.Example = mediaExample(mt)
	}
	for _, name := range sortedKeys(r.Headers) {
		ref := r.Headers[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		hd := &HeaderDescriptor{Name: name, Example: ref.Value.Example}
		if ref.Value.Schema != nil {
			hd.Schema = ref.Value.Schema.Value
		}
		rd.Headers = append(rd.Headers, hd)
	}
	return rd, media
}

func buildScheme(name string, s *openapi3.SecurityScheme) *SecurityScheme {
	scheme := &SecurityScheme{Name: name, Type: SchemeOther}
	switch {
	case s.Type == "basic", s.Type == "http" && strings.EqualFold(s.Scheme, "basic"):
		scheme.Type = SchemeBasic
	case s.Type == "apiKey":
		scheme.Type = SchemeAPIKey
		scheme.In = s.In
		scheme.ParamName = s.Name
	}
	return scheme
}

func securityList(reqs openapi3.SecurityRequirements) []SecurityRequirement {
	out := make([]SecurityRequirement, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, SecurityRequirement(sortedKeys(req)))
	}
	return out
}

// pickMedia prefers application/json, then any JSON flavour, then the
// first media type in name order.
func pickMedia(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	if mt, ok := content["application/json"]; ok {
		return "application/json", mt
	}
	names := sortedKeys(content)
	for _, name := range names {
		if strings.Contains(name, "json") {
			return name, content[name]
		}
	}
	return names[0], content[names[0]]
}

func mediaExample(mt *openapi3.MediaType) any {
	if mt.Example != nil {
		return mt.Example
	}
	for _, name := range sortedKeys(mt.Examples) {
		if ex := mt.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return ex.Value.Value
		}
	}
	return nil
}

func responseMediaTypes(responses []*ResponseDescriptor) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range responses {
		for _, mt := range r.MediaTypes {
			if !seen[mt] {
				seen[mt] = true
				out = append(out, mt)
			}
		}
	}
	sort.Strings(out)
	return out
}

func serverPath(serverURL string) string {
	if serverURL == "" {
		return ""
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return ""
	}
	return u.Path
}

// normalizeBasePath ensures a leading slash and removes the trailing one.
func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if len(basePath) > 1 {
		basePath = strings.TrimSuffix(basePath, "/")
	}
	return basePath
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
