package apidoc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/apitest"
)

func TestLoadSwagger2(t *testing.T) {
	doc := apitest.Load(t, apitest.PetStore2)

	assert.Equal(t, "Swagger Petstore", doc.Title)
	assert.Equal(t, "2.0", doc.SpecVersion)
	assert.Equal(t, "/api", doc.BasePath)

	var templates []string
	for _, p := range doc.Paths {
		templates = append(templates, p.Template)
	}
	assert.Equal(t, []string{
		"/pets", "/pets/{PetName}", "/pets/mine", "/pets/{PetName}/photos/{ID}",
		"/secure", "/secure/both", "/secure/oauth", "/wrapped", "/uploads",
	}, templates)

	pets := doc.Path("/pets")
	require.NotNil(t, pets)
	assert.Equal(t, []string{"get", "post", "delete"}, pets.Methods)

	post := pets.Operation("POST")
	require.NotNil(t, post)
	assert.Equal(t, []string{"application/json"}, post.Consumes)
	assert.Equal(t, []string{"application/json"}, post.Produces)
	require.Len(t, post.Parameters, 1)
	assert.Equal(t, apidoc.InBody, post.Parameters[0].In)
	assert.Equal(t, "PetData", post.Parameters[0].Name)
	assert.True(t, post.Parameters[0].Required)
	require.NotNil(t, post.RequestBody)
	assert.True(t, post.RequestBody.Required)

	created := post.Response("201")
	require.NotNil(t, created)
	code, ok := created.StatusCode()
	assert.True(t, ok)
	assert.Equal(t, 201, code)
	require.Len(t, created.Headers, 1)
	assert.Equal(t, "Location", created.Headers[0].Name)
}

func TestLoadSwagger2OperationOverrides(t *testing.T) {
	doc := apitest.Load(t, apitest.PetStore2)

	photo := doc.Path("/pets/{PetName}/photos/{ID}").Operation("get")
	require.NotNil(t, photo)
	assert.Equal(t, []string{"image/png"}, photo.Produces)
	assert.Equal(t, "string", apidoc.SchemaType(photo.Responses[0].Schema))
	assert.Equal(t, "binary", photo.Responses[0].Schema.Format)

	upload := doc.Path("/uploads").Operation("post")
	require.NotNil(t, upload)
	assert.Equal(t, []string{"multipart/form-data"}, upload.Consumes)

	var form []string
	for _, p := range upload.Parameters {
		if p.In == apidoc.InFormData {
			form = append(form, p.Name)
		}
	}
	assert.Equal(t, []string{"Title"}, form)

	wrapped := doc.Path("/wrapped").Operation("post")
	require.NotNil(t, wrapped)
	require.Len(t, wrapped.Responses, 1)
	assert.True(t, wrapped.Responses[0].IsDefault())
	assert.False(t, wrapped.RequestBody.Required)
}

func TestLoadSwagger2Security(t *testing.T) {
	doc := apitest.Load(t, apitest.PetStore2)

	assert.Equal(t, apidoc.SchemeBasic, doc.SecuritySchemes["petBasic"].Type)
	assert.Equal(t, apidoc.SchemeAPIKey, doc.SecuritySchemes["petHeader"].Type)
	assert.Equal(t, "header", doc.SecuritySchemes["petHeader"].In)
	assert.Equal(t, "X-API-KEY", doc.SecuritySchemes["petHeader"].ParamName)
	assert.Equal(t, "query", doc.SecuritySchemes["petQuery"].In)
	assert.Equal(t, apidoc.SchemeOther, doc.SecuritySchemes["petOAuth"].Type)

	secure := doc.Path("/secure").Operation("get")
	assert.True(t, secure.HasSecurity)
	assert.Equal(t, []apidoc.SecurityRequirement{{"petBasic"}, {"petHeader"}}, secure.Security)

	both := doc.Path("/secure/both").Operation("get")
	assert.Equal(t, []apidoc.SecurityRequirement{{"petBasic", "petQuery"}}, both.Security)

	assert.False(t, doc.Path("/pets").Operation("get").HasSecurity)
}

func TestLoadOpenAPI3(t *testing.T) {
	doc := apitest.Load(t, apitest.PetStore3)

	assert.Equal(t, "3.0.3", doc.SpecVersion)
	assert.Equal(t, "/v3", doc.BasePath)
	assert.Equal(t, []apidoc.SecurityRequirement{{"bearerAuth"}}, doc.Security)
	assert.Equal(t, apidoc.SchemeBasic, doc.SecuritySchemes["basicAuth"].Type)
	assert.Equal(t, apidoc.SchemeOther, doc.SecuritySchemes["bearerAuth"].Type)

	list := doc.Path("/pets").Operation("get")
	require.NotNil(t, list)
	assert.True(t, list.HasSecurity)
	assert.Empty(t, list.Security)
	require.Len(t, list.Parameters, 3)
	assert.Equal(t, "pipeDelimited", list.Parameters[0].Style)
	assert.Equal(t, "since", list.Parameters[2].Name)
	assert.Equal(t, "header:since", list.Parameters[2].Key())

	create := doc.Path("/pets").Operation("post")
	require.NotNil(t, create)
	assert.Equal(t, []string{"application/json"}, create.Consumes)
	require.Len(t, create.Parameters, 1)
	assert.Equal(t, "body", create.Parameters[0].Name)

	one := doc.Path("/pets/{id}").Operation("get")
	require.NotNil(t, one)
	assert.Equal(t, []string{"200", "404"}, []string{one.Responses[0].Code, one.Responses[1].Code})
	assert.Equal(t, map[string]any{"id": float64(1), "name": "Fido"}, normalizeExample(one.Responses[0].Example))
	assert.True(t, one.Parameters[0].Required)
}

// normalizeExample maps integer example values to float64 so assertions
// do not depend on how the YAML decoder typed them.
func normalizeExample(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeExample(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return v
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		code apidoc.ErrorCode
	}{
		{name: "not yaml", data: "{{{", code: apidoc.ParseError},
		{name: "unknown version", data: "info:\n  title: x\n", code: apidoc.ParseError},
		{name: "invalid document", data: "openapi: 3.0.0\ninfo:\n  version: 1.0.0\npaths: {}\n", code: apidoc.ValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := apidoc.Load(context.Background(), []byte(tt.data))
			require.Error(t, err)

			var loadErr *apidoc.LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(apitest.PetStore3), 0o644))

	doc, err := apidoc.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Petstore v3", doc.Title)

	_, err = apidoc.LoadFile(context.Background(), filepath.Join(dir, "missing.yaml"))
	var loadErr *apidoc.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, apidoc.InputError, loadErr.Code)
}
