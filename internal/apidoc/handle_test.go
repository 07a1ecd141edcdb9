package apidoc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/apitest"
)

func TestHandleStartsUnloaded(t *testing.T) {
	h := apidoc.NewHandle("petstore.yaml", nil)

	snap := h.Current()
	assert.Nil(t, snap.Doc)
	assert.Error(t, snap.Err)
	assert.Equal(t, "petstore.yaml", h.Source())
}

func TestHandleReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(apitest.PetStore3), 0o644))

	h := apidoc.NewHandle(path, nil)
	first := h.Reload(context.Background())
	require.NoError(t, first.Err)
	assert.Equal(t, "Petstore v3", first.Doc.Title)

	// A broken edit publishes an error snapshot and leaves the old one intact.
	require.NoError(t, os.WriteFile(path, []byte("openapi: 3.0.0\n"), 0o644))
	second := h.Reload(context.Background())
	assert.Error(t, second.Err)
	assert.Nil(t, second.Doc)
	assert.Greater(t, second.Revision, first.Revision)
	assert.Equal(t, "Petstore v3", first.Doc.Title)
	assert.Same(t, second, h.Current())

	require.NoError(t, os.WriteFile(path, []byte(apitest.PetStore2), 0o644))
	third := h.Reload(context.Background())
	require.NoError(t, third.Err)
	assert.Equal(t, "Swagger Petstore", h.Current().Doc.Title)
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(apitest.PetStore3), 0o644))

	h := apidoc.NewHandle(path, nil)
	h.Reload(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- apidoc.Watch(ctx, h, 20*time.Millisecond) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(apitest.PetStore2), 0o644))

	assert.Eventually(t, func() bool {
		snap := h.Current()
		return snap.Doc != nil && snap.Doc.Title == "Swagger Petstore"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
