package semantic

import (
	"strings"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/metadata"
)

// Request is what a mock needs to know about the addressed resource.
type Request struct {
	// IsCollection is true when the request addresses a set of resources.
	IsCollection bool
}

// NewRequest decides whether md addresses a collection. The GET (or HEAD)
// response of the same path decides when it has a schema; otherwise a
// template that does not end in a placeholder is a collection.
func NewRequest(md *metadata.RequestMetadata) *Request {
	if md.Path == nil {
		return &Request{}
	}
	if resp := getterResponse(md.Path); resp != nil {
		return &Request{IsCollection: NewResponse(resp, md.Path).IsCollection}
	}
	return &Request{IsCollection: !endsWithPlaceholder(md.PathName)}
}

func getterResponse(path *apidoc.PathDescriptor) *apidoc.ResponseDescriptor {
	for _, method := range []string{"get", "head"} {
		op := path.Operation(method)
		if op == nil {
			continue
		}
		for _, r := range op.Responses {
			code, ok := r.StatusCode()
			if ok && code >= 200 && code < 300 && r.Schema != nil {
				return r
			}
		}
	}
	return nil
}

func endsWithPlaceholder(template string) bool {
	template = strings.TrimSuffix(template, "/")
	segments := strings.Split(template, "/")
	return metadata.Placeholder(segments[len(segments)-1])
}
