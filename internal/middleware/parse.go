package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/coerce"
	"github.com/prasenjit/go-mockapi/internal/httperr"
	"github.com/prasenjit/go-mockapi/internal/metadata"
)

const maxMemory = 32 << 20

// parse reads the body of r and coerces every declared parameter into
// md.Values. Absent parameters get their default.
func parse(r *http.Request, md *metadata.RequestMetadata) error {
	form, err := readBody(r, md)
	if err != nil {
		return err
	}

	query := r.URL.Query()
	for _, p := range md.Params {
		if p.In == apidoc.InBody {
			continue
		}
		raw, ok := rawValue(r, md, p, query, form)
		if !ok {
			if p.Default == nil {
				continue
			}
			// String defaults are parsed like request values; typed ones
			// pass through.
			raw = p.Default
		}
		v, err := coerce.Param(p, raw)
		if err != nil {
			return err
		}
		if v != nil {
			md.Values[p.Key()] = v
		}
	}
	return nil
}

// formBody holds the fields of a form-encoded body.
type formBody struct {
	values url.Values
	files  map[string][]byte
}

// readBody records the body size and decodes it: form fields when the
// operation takes formData, else JSON or text into md.Body.
func readBody(r *http.Request, md *metadata.RequestMetadata) (*formBody, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Unable to read the request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	md.BodySize = int64(len(data))
	if len(data) == 0 {
		return nil, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if !hasForm(md) {
			break
		}
		return readForm(r, mediaType, data)
	}

	if mediaType == "" || strings.Contains(mediaType, "json") {
		var body any
		if err := json.Unmarshal(data, &body); err != nil {
			if mediaType == "" && !bodyIsObject(md) {
				md.Body = string(data)
				return nil, nil
			}
			return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Invalid JSON in the request body")
		}
		md.Body = body
		return nil, nil
	}
	md.Body = string(data)
	return nil, nil
}

func readForm(r *http.Request, mediaType string, data []byte) (*formBody, error) {
	defer func() { r.Body = io.NopCloser(bytes.NewReader(data)) }()

	form := &formBody{files: map[string][]byte{}}
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Invalid form data in the request body")
		}
		form.values = values
		return form, nil
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Invalid multipart body")
	}
	form.values = url.Values(r.MultipartForm.Value)
	for name, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Unable to read uploaded file %q", name)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, httperr.Wrap(err, httperr.KindValidation, http.StatusBadRequest, "Unable to read uploaded file %q", name)
		}
		form.files[name] = content
	}
	return form, nil
}

func hasForm(md *metadata.RequestMetadata) bool {
	for _, p := range md.Params {
		if p.In == apidoc.InFormData {
			return true
		}
	}
	return false
}

func bodyIsObject(md *metadata.RequestMetadata) bool {
	for _, p := range md.Params {
		if p.In == apidoc.InBody {
			return apidoc.SchemaType(p.Schema) != openapi3.TypeString
		}
	}
	return false
}

// rawValue returns the serialized value of p as found in the request.
// Repeated query and form keys are returned as []string; uploaded files
// as []byte.
func rawValue(r *http.Request, md *metadata.RequestMetadata, p *apidoc.ParameterDescriptor, query url.Values, form *formBody) (any, bool) {
	switch p.In {
	case apidoc.InPath:
		v, ok := md.PathValues[p.Name]
		return v, ok

	case apidoc.InQuery:
		return queryValue(p, query)

	case apidoc.InHeader:
		if strings.EqualFold(p.Name, "Content-Length") {
			if v := r.Header.Get("Content-Length"); v != "" {
				return v, true
			}
			if r.ContentLength > 0 {
				return strconv.FormatInt(r.ContentLength, 10), true
			}
			return nil, false
		}
		values := r.Header.Values(p.Name)
		if len(values) == 0 {
			return nil, false
		}
		return strings.Join(values, ","), true

	case apidoc.InCookie:
		cookie, err := r.Cookie(p.Name)
		if err != nil {
			return nil, false
		}
		return cookie.Value, true

	case apidoc.InFormData:
		if form == nil {
			return nil, false
		}
		if content, ok := form.files[p.Name]; ok {
			return content, true
		}
		values, ok := form.values[p.Name]
		if !ok || len(values) == 0 {
			return nil, false
		}
		return values, true
	}
	return nil, false
}

// queryValue finds a query parameter. deepObject parameters and exploded
// form objects are spread over several keys, so they receive the encoded
// subset of the query string holding their keys.
func queryValue(p *apidoc.ParameterDescriptor, query url.Values) (any, bool) {
	style := coerce.Style(p)
	isObject := apidoc.SchemaType(p.Schema) == openapi3.TypeObject

	switch {
	case style == coerce.StyleDeepObject:
		prefix := p.Name + "["
		subset := url.Values{}
		for key, values := range query {
			if strings.HasPrefix(key, prefix) {
				subset[key] = values
			}
		}
		if len(subset) == 0 {
			return nil, false
		}
		return subset.Encode(), true

	case style == coerce.StyleForm && isObject && coerce.Explode(p):
		subset := url.Values{}
		for key, values := range query {
			if _, ok := p.Schema.Properties[key]; ok {
				subset[key] = values
			}
		}
		if len(subset) == 0 {
			return nil, false
		}
		return subset.Encode(), true
	}

	values, ok := query[p.Name]
	if !ok {
		return nil, false
	}
	return values, true
}
