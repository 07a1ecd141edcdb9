package coerce

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
)

// Primitive converts a single string according to the type and format of
// schema. A nil or untyped schema leaves s unchanged.
func Primitive(schema *openapi3.Schema, s string) (any, error) {
	switch apidoc.SchemaType(schema) {
	case openapi3.TypeInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not a valid integer", s)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%q is not a whole number", s)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%q is out of range for a 64-bit integer", s)
		}
		return int64(f), nil

	case openapi3.TypeNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return nil, fmt.Errorf("%q is not a valid number", s)
		}
		return f, nil

	case openapi3.TypeBoolean:
		switch {
		case strings.EqualFold(s, "true"):
			return true, nil
		case strings.EqualFold(s, "false"):
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a valid boolean", s)

	case openapi3.TypeString:
		return stringFormat(schema.Format, s)
	}
	return s, nil
}

func stringFormat(format, s string) (any, error) {
	switch format {
	case "byte":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not valid base64: %w", s, err)
		}
		return b, nil

	case "binary":
		return []byte(s), nil

	case "date":
		if !datePattern.MatchString(s) {
			return nil, fmt.Errorf("%q is not a valid date", s)
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid date: %w", s, err)
		}
		return t, nil

	case "date-time":
		if !dateTimePattern.MatchString(s) {
			return nil, fmt.Errorf("%q is not a valid date-time", s)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid date-time: %w", s, err)
		}
		return t, nil
	}
	return s, nil
}

// ErrUnsupported is returned by Format for values it cannot render.
var ErrUnsupported = errors.New("unsupported value")

// Format renders a typed value back into its string form. It is the
// inverse of Primitive and is used for response headers and stored keys.
func Format(schema *openapi3.Schema, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []byte:
		if schema != nil && schema.Format == "byte" {
			return base64.StdEncoding.EncodeToString(val), nil
		}
		return string(val), nil
	case time.Time:
		if schema != nil && schema.Format == "date" {
			return val.UTC().Format(time.DateOnly), nil
		}
		return val.UTC().Format(time.RFC3339), nil
	case []any:
		var items *openapi3.Schema
		if schema != nil && schema.Items != nil {
			items = schema.Items.Value
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, err := Format(items, item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupported, v)
}
