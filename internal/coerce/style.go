package coerce

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

// decoded is the style-neutral form of a parameter: a scalar, a list or a
// list of key/value fields, still as strings.
type decoded struct {
	scalar   string
	isScalar bool
	list     []string
	fields   []field
}

type field struct {
	key   string
	value string
}

func scalarOf(s string) decoded  { return decoded{scalar: s, isScalar: true} }
func listOf(s []string) decoded  { return decoded{list: s} }
func fieldsOf(f []field) decoded { return decoded{fields: f} }

func splitList(s, sep string) decoded {
	if s == "" {
		return listOf([]string{})
	}
	return listOf(strings.Split(s, sep))
}

// decode undoes the serialization style. values holds one entry per
// occurrence of the parameter in the request.
func decode(style, name string, explode bool, schema *openapi3.Schema, values []string) (decoded, error) {
	kind := apidoc.SchemaType(schema)
	first := values[0]

	switch style {
	case StyleSimple:
		return decodeSeparated(kind, explode, first, ","), nil

	case StyleLabel:
		if !strings.HasPrefix(first, ".") {
			return decoded{}, fmt.Errorf("label value must start with '.'")
		}
		value := first[1:]
		if kind == openapi3.TypeArray && explode {
			return splitList(value, "."), nil
		}
		if kind == openapi3.TypeObject && explode {
			return fieldsOf(assignments(value, ".")), nil
		}
		return decodeSeparated(kind, false, value, ","), nil

	case StyleMatrix:
		return decodeMatrix(kind, name, explode, first)

	case StyleForm:
		switch kind {
		case openapi3.TypeArray:
			if explode {
				return listOf(values), nil
			}
			var out []string
			for _, v := range values {
				if v != "" {
					out = append(out, strings.Split(v, ",")...)
				}
			}
			return listOf(out), nil
		case openapi3.TypeObject:
			if explode {
				return decodeQuery(first, func(key string) (string, bool) { return key, true })
			}
			return fieldsOf(pairs(strings.Split(first, ","))), nil
		}
		return scalarOf(first), nil

	case StyleSpaceDelimited:
		return decodeSeparated(kind, false, strings.Join(values, " "), " "), nil

	case StylePipeDelimited:
		return decodeSeparated(kind, false, strings.Join(values, "|"), "|"), nil

	case StyleDeepObject:
		prefix := name + "["
		return decodeQuery(first, func(key string) (string, bool) {
			if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") {
				return "", false
			}
			return key[len(prefix) : len(key)-1], true
		})
	}
	return decoded{}, fmt.Errorf("unsupported style %q", style)
}

// decodeSeparated handles styles whose array items and object members are
// joined by a single separator.
func decodeSeparated(kind string, explode bool, value, sep string) decoded {
	switch kind {
	case openapi3.TypeArray:
		return splitList(value, sep)
	case openapi3.TypeObject:
		if value == "" {
			return fieldsOf(nil)
		}
		if explode {
			return fieldsOf(assignments(value, sep))
		}
		return fieldsOf(pairs(strings.Split(value, sep)))
	}
	return scalarOf(value)
}

func decodeMatrix(kind, name string, explode bool, value string) (decoded, error) {
	if !strings.HasPrefix(value, ";") {
		return decoded{}, fmt.Errorf("matrix value must start with ';'")
	}
	value = value[1:]
	prefix := name + "="

	switch {
	case kind == openapi3.TypeArray && explode:
		var out []string
		for _, part := range strings.Split(value, ";") {
			if strings.HasPrefix(part, prefix) {
				out = append(out, part[len(prefix):])
			}
		}
		return listOf(out), nil
	case kind == openapi3.TypeObject && explode:
		return fieldsOf(assignments(value, ";")), nil
	}

	if value == name {
		return decodeSeparated(kind, false, "", ","), nil
	}
	if !strings.HasPrefix(value, prefix) {
		return decoded{}, fmt.Errorf("matrix value must start with %q", ";"+prefix)
	}
	return decodeSeparated(kind, false, value[len(prefix):], ","), nil
}

// decodeQuery parses an encoded query string and keeps the keys accepted by
// keep, renamed to the returned property name.
func decodeQuery(query string, keep func(key string) (string, bool)) (decoded, error) {
	q, err := url.ParseQuery(query)
	if err != nil {
		return decoded{}, err
	}
	var out []field
	for _, key := range sortedKeys(q) {
		prop, ok := keep(key)
		if !ok || len(q[key]) == 0 {
			continue
		}
		out = append(out, field{key: prop, value: q[key][0]})
	}
	return fieldsOf(out), nil
}

// assignments splits "k=v<sep>k2=v2".
func assignments(value, sep string) []field {
	var out []field
	for _, part := range strings.Split(value, sep) {
		if k, v, ok := strings.Cut(part, "="); ok && k != "" {
			out = append(out, field{key: k, value: v})
		}
	}
	return out
}

// pairs reads alternating keys and values: "k,v,k2,v2".
func pairs(parts []string) []field {
	var out []field
	for i := 0; i+1 < len(parts); i += 2 {
		out = append(out, field{key: parts[i], value: parts[i+1]})
	}
	return out
}

func sortedKeys(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
