package validate

import (
	"mime"
	"sort"
	"strconv"
	"strings"
)

type mediaRange struct {
	typ string
	q   float64
}

// Negotiate picks the first of offers acceptable under the Accept header,
// honouring q-values and wildcards. An empty header accepts anything.
func Negotiate(accept string, offers []string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}
	if strings.TrimSpace(accept) == "" {
		return offers[0], true
	}
	ranges := parseAccept(accept)
	for _, r := range ranges {
		for _, offer := range offers {
			o := baseType(offer)
			if !mediaMatch(r.typ, o) {
				continue
			}
			if strings.Contains(o, "*") && !strings.Contains(r.typ, "*") {
				return r.typ, true
			}
			return offer, true
		}
	}
	return "", false
}

// MatchesAny reports whether contentType is one of the allowed types.
// Parameters such as charset or boundary are ignored.
func MatchesAny(contentType string, allowed []string) bool {
	ct := baseType(contentType)
	if ct == "" {
		return false
	}
	for _, a := range allowed {
		if mediaMatch(baseType(a), ct) {
			return true
		}
	}
	return false
}

func parseAccept(accept string) []mediaRange {
	var out []mediaRange
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		typ, params, err := mime.ParseMediaType(part)
		if err != nil {
			typ = baseType(part)
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		if q <= 0 {
			continue
		}
		out = append(out, mediaRange{typ: typ, q: q})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].q > out[j].q })
	return out
}

func baseType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// mediaMatch compares two media types where either side may use "*".
func mediaMatch(a, b string) bool {
	if a == b || a == "*/*" || b == "*/*" || a == "*" || b == "*" {
		return true
	}
	at, as, ok1 := strings.Cut(a, "/")
	bt, bs, ok2 := strings.Cut(b, "/")
	if !ok1 || !ok2 || at != bt {
		return false
	}
	return as == "*" || bs == "*" || as == bs
}
