package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/semantic"
	"github.com/prasenjit/go-mockapi/internal/validate"
)

const (
	defaultContentType = "application/json"
	sessionCookie      = "session"
)

// send writes the response for x with data as its body. Unless shaped is
// set, data is resource data and is placed in the response envelope first.
func (m *Mock) send(x *exchange, data any, shaped bool) error {
	c := x.c
	if m.aborted(c) {
		return nil
	}

	m.setHeaders(x)

	if x.resp.IsEmpty || data == nil {
		c.Status(x.status)
		c.Writer.WriteHeaderNow()
		return nil
	}
	if !shaped {
		data = x.resp.Wrap(data)
	}

	contentType := m.contentType(x)
	body, err := render(x.resp.Schema, contentType, data)
	if err != nil {
		return err
	}
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", contentType)
		c.Status(x.status)
		c.Writer.WriteHeaderNow()
		return nil
	}
	c.Data(x.status, contentType, body)
	return nil
}

// contentType picks the response media type from the operation's produces
// list and the Accept header.
func (m *Mock) contentType(x *exchange) string {
	produces := x.md.Operation.Produces
	if len(produces) == 0 {
		return defaultContentType
	}
	if ct, ok := validate.Negotiate(x.c.GetHeader("Accept"), produces); ok && !strings.Contains(ct, "*") {
		return ct
	}
	return produces[0]
}

// render serializes data for contentType. Binary schemas are written as
// raw bytes and strings in non-JSON media types as text.
func render(schema *openapi3.Schema, contentType string, data any) ([]byte, error) {
	if isBinary(schema) {
		switch v := data.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	if s, ok := data.(string); ok && !strings.Contains(contentType, "json") {
		return []byte(s), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return b, nil
}

func isBinary(schema *openapi3.Schema) bool {
	if schema == nil {
		return false
	}
	switch apidoc.SchemaType(schema) {
	case "file":
		return true
	case openapi3.TypeString:
		return schema.Format == "binary"
	}
	return false
}

// setHeaders fills in the headers the response declares.
func (m *Mock) setHeaders(x *exchange) {
	c := x.c
	if x.resp.Location != "" {
		c.Header("Location", x.resp.Location)
	}
	if x.resp.Descriptor == nil {
		return
	}

	for _, h := range x.resp.Descriptor.Headers {
		switch strings.ToLower(h.Name) {
		case "last-modified":
			modified := x.resp.LastModified
			if modified.IsZero() {
				modified = m.now()
			}
			c.Header("Last-Modified", modified.UTC().Format(http.TimeFormat))
		case "location":
			if x.resp.Location == "" {
				c.Header("Location", c.Request.URL.Path)
			}
		case "content-disposition":
			if isBinary(x.resp.Schema) {
				c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(c.Request.URL.Path)))
			}
		case "set-cookie":
			if c.Writer.Header().Get("Set-Cookie") == "" {
				http.SetCookie(c.Writer, &http.Cookie{Name: sessionCookie, Value: uuid.NewString(), Path: "/"})
			}
		default:
			if c.Writer.Header().Get(h.Name) != "" {
				continue
			}
			v, err := semantic.HeaderValue(h)
			if err != nil {
				m.logger.Warn("cannot generate response header", "header", h.Name, "error", err)
				continue
			}
			c.Header(h.Name, v)
		}
	}
}
