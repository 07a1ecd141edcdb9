// Package validate checks a request against the operation it addresses.
//
// Request runs a fixed sequence of checks and returns the first failure
// as an *httperr.Error:
//
//	500  the API document could not be loaded
//	400  a parameter or the request body violates its schema
//	401  no security requirement is satisfied
//	404  the path is not declared
//	405  the method is not declared on the path
//	406  nothing the operation produces is acceptable
//	411  a required Content-Length header is missing
//	413  the request has a body but the operation takes none
//	415  the Content-Type is not one the operation consumes
package validate

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
	"github.com/prasenjit/go-mockapi/internal/httperr"
	"github.com/prasenjit/go-mockapi/internal/metadata"
)

// Input is everything the checks look at.
type Input struct {
	// DocErr is the load error of the current document snapshot.
	DocErr   error
	Metadata *metadata.RequestMetadata
	Request  *http.Request
	// Values holds the coerced parameter values keyed by
	// ParameterDescriptor.Key. Absent keys were not supplied.
	Values map[string]any
	// Body is the decoded request body, nil when there is none.
	Body any
	// BodySize is the number of body bytes received.
	BodySize int64
}

type check func(in *Input) error

var checks = []check{
	checkDocument,
	checkParams,
	checkBody,
	checkSecurity,
	checkPath,
	checkMethod,
	checkAccept,
	checkContentLength,
	checkSize,
	checkContentType,
}

// Request runs every check in order and returns the first error.
func Request(in Input) error {
	if in.Metadata == nil {
		in.Metadata = &metadata.RequestMetadata{}
	}
	for _, c := range checks {
		if err := c(&in); err != nil {
			return err
		}
	}
	return nil
}

func checkDocument(in *Input) error {
	if in.DocErr == nil {
		return nil
	}
	return httperr.Wrap(in.DocErr, httperr.KindDocument, http.StatusInternalServerError,
		"Unable to validate %s %s: the API is invalid or could not be parsed", in.Request.Method, in.Request.URL.Path)
}

func checkParams(in *Input) error {
	for _, p := range in.Metadata.Params {
		if p.In == apidoc.InBody {
			continue
		}
		v, ok := in.Values[p.Key()]
		if !ok || v == nil {
			if p.Required && !isContentLength(p) {
				return httperr.New(httperr.KindValidation, http.StatusBadRequest,
					"Missing required %s parameter %q", p.In, p.Name).
					With("name", p.Name).
					With("in", string(p.In))
			}
			continue
		}
		if p.Schema == nil {
			continue
		}
		if err := p.Schema.VisitJSON(coerce.JSONValue(p.Schema, v)); err != nil {
			return httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest,
				"The %q %s parameter is invalid (%s)", p.Name, p.In, display(p, v)).
				With("name", p.Name).
				With("in", string(p.In))
		}
	}
	return nil
}

// checkBody validates the decoded body against the body parameter's schema.
func checkBody(in *Input) error {
	for _, p := range in.Metadata.Params {
		if p.In != apidoc.InBody {
			continue
		}
		if in.Body == nil {
			if p.Required {
				return httperr.New(httperr.KindValidation, http.StatusBadRequest,
					"Missing required request body %q", p.Name).With("name", p.Name)
			}
			return nil
		}
		if p.Schema == nil {
			return nil
		}
		if err := p.Schema.VisitJSON(in.Body); err != nil {
			return httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest,
				"Invalid request body %q", p.Name).With("name", p.Name)
		}
	}
	return nil
}

func checkPath(in *Input) error {
	md := in.Metadata
	if md.API != nil && md.Path == nil {
		return httperr.New(httperr.KindNotFound, http.StatusNotFound,
			"Resource not found: %s", in.Request.URL.Path)
	}
	return nil
}

func checkMethod(in *Input) error {
	md := in.Metadata
	if md.Path == nil || md.Operation != nil {
		return nil
	}
	allowed := make([]string, 0, len(md.Path.Methods))
	for _, m := range md.Path.Methods {
		allowed = append(allowed, strings.ToUpper(m))
	}
	return httperr.New(httperr.KindValidation, http.StatusMethodNotAllowed,
		"%s does not allow %s. Allowed methods: %s", in.Request.URL.Path, in.Request.Method, strings.Join(allowed, ", ")).
		WithHeader("Allow", strings.Join(allowed, ", "))
}

func checkAccept(in *Input) error {
	op := in.Metadata.Operation
	if op == nil || len(op.Produces) == 0 {
		return nil
	}
	accept := in.Request.Header.Get("Accept")
	if _, ok := Negotiate(accept, op.Produces); ok {
		return nil
	}
	return httperr.New(httperr.KindValidation, http.StatusNotAcceptable,
		"%s %s cannot produce any of the requested formats (%s). Supported formats: %s",
		in.Request.Method, in.Request.URL.Path, accept, strings.Join(op.Produces, ", "))
}

func checkContentLength(in *Input) error {
	for _, p := range in.Metadata.Params {
		if !isContentLength(p) || !p.Required {
			continue
		}
		if v, ok := in.Values[p.Key()]; !ok || v == nil {
			return httperr.New(httperr.KindValidation, http.StatusLengthRequired,
				"Missing Content-Length header")
		}
	}
	return nil
}

func checkSize(in *Input) error {
	op := in.Metadata.Operation
	if op == nil || !hasBody(in) {
		return nil
	}
	for _, p := range in.Metadata.Params {
		if p.In == apidoc.InBody || p.In == apidoc.InFormData {
			return nil
		}
	}
	return httperr.New(httperr.KindValidation, http.StatusRequestEntityTooLarge,
		"%s %s does not allow body content", in.Request.Method, in.Request.URL.Path)
}

func checkContentType(in *Input) error {
	op := in.Metadata.Operation
	if op == nil || len(op.Consumes) == 0 || !hasBody(in) {
		return nil
	}
	contentType := in.Request.Header.Get("Content-Type")
	if MatchesAny(contentType, op.Consumes) {
		return nil
	}
	return httperr.New(httperr.KindValidation, http.StatusUnsupportedMediaType,
		"%s %s does not allow Content-Type %q", in.Request.Method, in.Request.URL.Path, contentType)
}

func hasBody(in *Input) bool {
	return in.BodySize > 0 || in.Request.ContentLength > 0
}

func isContentLength(p *apidoc.ParameterDescriptor) bool {
	return p.In == apidoc.InHeader && strings.EqualFold(p.Name, "Content-Length")
}

func display(p *apidoc.ParameterDescriptor, v any) string {
	if s, err := coerce.Format(p.Schema, v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
