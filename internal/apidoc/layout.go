package apidoc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// httpMethods are the operation keys a path item may declare.
var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// layout is what the raw document tells us that the kin-openapi model does
// not: declaration order and the Swagger 2.0 fields lost in conversion.
type layout struct {
	major     int
	basePath  string
	serverURL string
	paths     []string
	methods   map[string][]string
	responses map[string][]string
	consumes  []string
	produces  []string
	// opConsumes/opProduces are keyed by "<method> <template>"; presence of a
	// key means the operation overrides the document-level list.
	opConsumes map[string][]string
	opProduces map[string][]string
	// properties holds the declared property order of response schemas,
	// keyed by propertiesKey.
	properties map[string][]string
}

func opKey(method, template string) string {
	return method + " " + template
}

// propertiesKey identifies a response schema. media is empty for Swagger
// 2.0, where a response has one schema.
func propertiesKey(op, code, media string) string {
	return op + " " + code + " " + media
}

// readLayout parses data (YAML or JSON) into a node tree and records the
// declaration order of paths, methods and responses.
func readLayout(data []byte) (*layout, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse document: empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse document: top level is not an object")
	}

	l := &layout{
		methods:    make(map[string][]string),
		responses:  make(map[string][]string),
		opConsumes: make(map[string][]string),
		opProduces: make(map[string][]string),
		properties: make(map[string][]string),
	}

	switch {
	case strings.HasPrefix(scalar(child(doc, "openapi")), "3."):
		l.major = 3
	case strings.HasPrefix(scalar(child(doc, "swagger")), "2."):
		l.major = 2
	default:
		return nil, fmt.Errorf("missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
	}

	l.basePath = scalar(child(doc, "basePath"))
	if servers := child(doc, "servers"); servers != nil && servers.Kind == yaml.SequenceNode && len(servers.Content) > 0 {
		l.serverURL = scalar(child(servers.Content[0], "url"))
	}
	l.consumes = stringList(child(doc, "consumes"))
	l.produces = stringList(child(doc, "produces"))

	paths := child(doc, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return l, nil
	}
	for i := 0; i+1 < len(paths.Content); i += 2 {
		template := paths.Content[i].Value
		item := paths.Content[i+1]
		l.paths = append(l.paths, template)
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			method := strings.ToLower(item.Content[j].Value)
			if !httpMethods[method] {
				continue
			}
			op := item.Content[j+1]
			key := opKey(method, template)
			l.methods[template] = append(l.methods[template], method)
			l.responses[key] = keys(child(op, "responses"))
			l.readProperties(doc, key, child(op, "responses"))
			if n := child(op, "consumes"); n != nil {
				l.opConsumes[key] = stringList(n)
			}
			if n := child(op, "produces"); n != nil {
				l.opProduces[key] = stringList(n)
			}
		}
	}
	return l, nil
}

// readProperties records the property order of each response schema of
// the operation key.
func (l *layout) readProperties(doc *yaml.Node, key string, responses *yaml.Node) {
	if responses == nil || responses.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(responses.Content); i += 2 {
		code := responses.Content[i].Value
		resp := deref(doc, responses.Content[i+1])
		if l.major == 2 {
			if order := propertyOrder(doc, child(resp, "schema")); order != nil {
				l.properties[propertiesKey(key, code, "")] = order
			}
			continue
		}
		content := child(resp, "content")
		for _, media := range keys(content) {
			if order := propertyOrder(doc, child(child(content, media), "schema")); order != nil {
				l.properties[propertiesKey(key, code, media)] = order
			}
		}
	}
}

func propertyOrder(doc, schema *yaml.Node) []string {
	return keys(child(deref(doc, schema), "properties"))
}

// maxRefDepth bounds $ref chains, which may be cyclic.
const maxRefDepth = 16

// deref follows local $refs ("#/definitions/pet") from n. Anything it
// cannot follow yields nil.
func deref(doc, n *yaml.Node) *yaml.Node {
	for range maxRefDepth {
		ref := scalar(child(n, "$ref"))
		if ref == "" {
			return n
		}
		if !strings.HasPrefix(ref, "#/") {
			return nil
		}
		n = doc
		for _, token := range strings.Split(ref[2:], "/") {
			token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
			if n = child(n, token); n == nil {
				return nil
			}
		}
	}
	return nil
}

// child returns the value node for key in a mapping node, or nil.
func child(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func keys(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, n.Content[i].Value)
	}
	return out
}

func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func stringList(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if v := scalar(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
