package metadata

import (
	"regexp"
	"strings"
	"sync"
)

// pattern is a compiled path template.
type pattern struct {
	re    *regexp.Regexp
	names []string
}

var placeholder = regexp.MustCompile(`\\\{([^}/]+)\\\}`)

// patterns caches compiled templates. Keys include the routing flags since
// they change the expression.
var patterns sync.Map

// compile turns a template into an anchored expression where each {name}
// matches one path segment.
func compile(routing RoutingConfig, template string) *pattern {
	caseSensitive := routing != nil && routing.CaseSensitive()
	template = trimSlash(routing, template)

	key := template
	if !caseSensitive {
		key = "i:" + key
	}
	if cached, ok := patterns.Load(key); ok {
		return cached.(*pattern)
	}

	var names []string
	expr := placeholder.ReplaceAllStringFunc(regexp.QuoteMeta(template), func(m string) string {
		names = append(names, m[2:len(m)-2])
		return `([^/]+)`
	})
	prefix := "^"
	if !caseSensitive {
		prefix = "(?i)^"
	}
	p := &pattern{re: regexp.MustCompile(prefix + expr + "$"), names: names}
	patterns.Store(key, p)
	return p
}

// match reports whether path matches and returns the captured values.
func (p *pattern) match(path string) (map[string]string, bool) {
	if len(p.names) == 0 {
		return nil, false
	}
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	values := make(map[string]string, len(p.names))
	for i, name := range p.names {
		values[name] = m[i+1]
	}
	return values, true
}

// Placeholder reports whether segment is a "{name}" placeholder.
func Placeholder(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}
