package semantic

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
)

// maxSampleDepth bounds recursion through self-referencing schemas.
const maxSampleDepth = 8

var sampleUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("go-mockapi")).String()

// Sample builds a deterministic value that satisfies the common cases of
// schema: its default, its example, its first enum value, or a value made
// up from its type and format.
func Sample(schema *openapi3.Schema) any {
	return sample(schema, 0)
}

func sample(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > maxSampleDepth {
		return nil
	}
	switch {
	case schema.Default != nil:
		return schema.Default
	case schema.Example != nil:
		return schema.Example
	case len(schema.Enum) > 0:
		return schema.Enum[0]
	}

	switch apidoc.SchemaType(schema) {
	case openapi3.TypeObject:
		out := make(map[string]any, len(schema.Properties))
		for name, ref := range schema.Properties {
			if ref == nil {
				continue
			}
			if v := sample(ref.Value, depth+1); v != nil {
				out[name] = v
			}
		}
		return out
	case openapi3.TypeArray:
		if schema.Items == nil {
			return []any{}
		}
		item := sample(schema.Items.Value, depth+1)
		if item == nil {
			return []any{}
		}
		return []any{item}
	case openapi3.TypeString:
		return sampleString(schema.Format)
	case openapi3.TypeInteger:
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return int64(0)
	case openapi3.TypeNumber:
		if schema.Min != nil {
			return *schema.Min
		}
		return float64(0)
	case openapi3.TypeBoolean:
		return false
	}
	return nil
}

func sampleString(format string) string {
	switch format {
	case "date":
		return "1970-01-01"
	case "date-time":
		return "1970-01-01T00:00:00Z"
	case "uuid":
		return sampleUUID
	case "email":
		return "user@example.com"
	case "uri", "url":
		return "https://example.com"
	case "byte":
		return "c2FtcGxl"
	case "ipv4":
		return "127.0.0.1"
	}
	return "string"
}

// HeaderValue returns the string form of a response header: its example,
// or else a sample of its schema. Objects are rendered as JSON.
func HeaderValue(h *apidoc.HeaderDescriptor) (string, error) {
	v := h.Example
	if v == nil {
		v = Sample(h.Schema)
	}
	switch v.(type) {
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("header %s: %w", h.Name, err)
		}
		return string(b), nil
	}
	s, err := coerce.Format(h.Schema, v)
	if err != nil {
		return "", fmt.Errorf("header %s: %w", h.Name, err)
	}
	return s, nil
}
