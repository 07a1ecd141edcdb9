package coerce

import (
	"encoding/base64"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// JSONValue maps a coerced value back to the form encoding/json would
// produce, so it can be checked with openapi3.Schema.VisitJSON.
func JSONValue(schema *openapi3.Schema, v any) any {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case []byte:
		if schema != nil && schema.Format == "byte" {
			return base64.StdEncoding.EncodeToString(val)
		}
		return string(val)
	case time.Time:
		if schema != nil && schema.Format == "date" {
			return val.UTC().Format(time.DateOnly)
		}
		return val.Format(time.RFC3339Nano)
	case []any:
		var items *openapi3.Schema
		if schema != nil && schema.Items != nil {
			items = schema.Items.Value
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = JSONValue(items, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			var prop *openapi3.Schema
			if schema != nil {
				prop = propertySchema(schema, k)
			}
			out[k] = JSONValue(prop, item)
		}
		return out
	}
	return v
}
