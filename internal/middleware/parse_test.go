package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/httperr"
	"github.com/prasenjit/go-mockapi/internal/metadata"
)

func newMetadata(params ...*apidoc.ParameterDescriptor) *metadata.RequestMetadata {
	return &metadata.RequestMetadata{
		Operation:  &apidoc.OperationDescriptor{Method: "get"},
		Params:     params,
		PathValues: map[string]string{},
		Values:     map[string]any{},
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	limit := openapi3.NewIntegerSchema()
	limit.Default = float64(20)
	md := newMetadata(
		&apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "limit", Schema: limit, Default: limit.Default},
		&apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "q", Schema: openapi3.NewStringSchema()},
	)

	require.NoError(t, parse(httptest.NewRequest(http.MethodGet, "/", nil), md))
	assert.Equal(t, float64(20), md.Values["query:limit"])
	_, ok := md.Values["query:q"]
	assert.False(t, ok)

	md.Values = map[string]any{}
	require.NoError(t, parse(httptest.NewRequest(http.MethodGet, "/?limit=5", nil), md))
	assert.Equal(t, int64(5), md.Values["query:limit"])
}

func TestParseCoercesStringDefaults(t *testing.T) {
	since := openapi3.NewStringSchema().WithFormat("date")
	since.Default = "2010-11-04"
	md := newMetadata(&apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "since", Schema: since, Default: since.Default})

	require.NoError(t, parse(httptest.NewRequest(http.MethodGet, "/", nil), md))
	assert.Equal(t, time.Date(2010, 11, 4, 0, 0, 0, 0, time.UTC), md.Values["query:since"])

	bad := openapi3.NewStringSchema().WithFormat("date")
	bad.Default = "not-a-date"
	md = newMetadata(&apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "since", Schema: bad, Default: bad.Default})

	err := parse(httptest.NewRequest(http.MethodGet, "/", nil), md)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperr.StatusOf(err))
	assert.Contains(t, err.Error(), `The "since" query parameter is invalid (not-a-date)`)
}

func TestParseHeadersAndCookies(t *testing.T) {
	md := newMetadata(
		&apidoc.ParameterDescriptor{In: apidoc.InHeader, Name: "Content-Length", Schema: openapi3.NewIntegerSchema()},
		&apidoc.ParameterDescriptor{In: apidoc.InHeader, Name: "X-Tags", Schema: openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())},
		&apidoc.ParameterDescriptor{In: apidoc.InCookie, Name: "session", Schema: openapi3.NewStringSchema()},
	)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tags", "a,b")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	require.NoError(t, parse(req, md))
	assert.Equal(t, int64(7), md.Values["header:content-length"])
	assert.Equal(t, []any{"a", "b"}, md.Values["header:x-tags"])
	assert.Equal(t, "abc", md.Values["cookie:session"])
	assert.Equal(t, map[string]any{"a": float64(1)}, md.Body)
	assert.EqualValues(t, 7, md.BodySize)
}

func TestParseTextBody(t *testing.T) {
	md := newMetadata(&apidoc.ParameterDescriptor{In: apidoc.InBody, Name: "note", Schema: openapi3.NewStringSchema()})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	require.NoError(t, parse(req, md))
	assert.Equal(t, "hello", md.Body)

	md = newMetadata(&apidoc.ParameterDescriptor{In: apidoc.InBody, Name: "note", Schema: openapi3.NewStringSchema()})
	require.NoError(t, parse(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain words")), md))
	assert.Equal(t, "plain words", md.Body)
}

func TestParseURLEncodedForm(t *testing.T) {
	md := newMetadata(&apidoc.ParameterDescriptor{In: apidoc.InFormData, Name: "age", Schema: openapi3.NewIntegerSchema()})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("age=4&other=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	require.NoError(t, parse(req, md))
	assert.Equal(t, int64(4), md.Values["formData:age"])
	assert.Nil(t, md.Body)
}

func TestQueryValue(t *testing.T) {
	explode := true
	obj := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("age", openapi3.NewIntegerSchema())
	query, err := url.ParseQuery("filter[name]=Rex&name=Fido&age=3&ids=1&ids=2&other=x")
	require.NoError(t, err)

	deep := &apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "filter", Style: "deepObject", Explode: &explode, Schema: obj}
	v, ok := queryValue(deep, query)
	require.True(t, ok)
	assert.Equal(t, "filter%5Bname%5D=Rex", v)

	form := &apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "person", Schema: obj}
	v, ok = queryValue(form, query)
	require.True(t, ok)
	assert.Equal(t, "age=3&name=Fido", v)

	list := &apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "ids", Schema: openapi3.NewArraySchema()}
	v, ok = queryValue(list, query)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, v)

	_, ok = queryValue(&apidoc.ParameterDescriptor{In: apidoc.InQuery, Name: "missing"}, query)
	assert.False(t, ok)
}
