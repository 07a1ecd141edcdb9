package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindCoercion, ErrCoercion},
		{KindValidation, ErrValidation},
		{KindDocument, ErrDocument},
		{KindNotFound, ErrNotFound},
		{KindMock, ErrMock},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, http.StatusBadRequest, "boom")
			assert.ErrorIs(t, err, tt.sentinel)
			assert.NotErrorIs(t, err, errors.New("other"))
		})
	}
}

func TestError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, KindDocument, http.StatusInternalServerError, "cannot load %s", "api.yaml")

	assert.Equal(t, "cannot load api.yaml: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDocument)
}

func TestError_WithContextAndHeader(t *testing.T) {
	err := New(KindValidation, http.StatusMethodNotAllowed, "not allowed").
		With("path", "/pets").
		WithHeader("Allow", "GET, POST")

	assert.Equal(t, "/pets", err.Context["path"])
	assert.Equal(t, "GET, POST", err.Header.Get("Allow"))
}

func TestStatusOf(t *testing.T) {
	err := New(KindValidation, http.StatusNotFound, "missing")
	wrapped := fmt.Errorf("outer: %w", err)

	require.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}
