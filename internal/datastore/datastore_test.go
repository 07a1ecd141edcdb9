package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockapi/internal/apitest"
)

func stores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "/pets", "/fido")
			assert.True(t, errors.Is(err, ErrNotFound))

			created, err := s.Save(ctx, "/pets", "/fido", &Resource{Collection: "/pets", Name: "/Fido", Data: json.RawMessage(`{"Name":"Fido"}`)})
			require.NoError(t, err)
			assert.False(t, created.CreatedOn.IsZero())
			assert.Equal(t, "/pets/Fido", created.Path())

			time.Sleep(2 * time.Millisecond)
			updated, err := s.Save(ctx, "/pets", "/fido", &Resource{Collection: "/pets", Name: "/Fido", Data: json.RawMessage(`{"Name":"Fido","Age":4}`)})
			require.NoError(t, err)
			assert.True(t, updated.CreatedOn.Equal(created.CreatedOn))
			assert.True(t, updated.ModifiedOn.After(created.ModifiedOn))

			got, err := s.Get(ctx, "/pets", "/fido")
			require.NoError(t, err)
			assert.JSONEq(t, `{"Name":"Fido","Age":4}`, string(got.Data))

			_, err = s.Save(ctx, "/pets", "/rex", &Resource{Collection: "/pets", Name: "/Rex", Data: json.RawMessage(`{}`)})
			require.NoError(t, err)

			list, err := s.List(ctx, "/pets")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "/Fido", list[0].Name)

			collections, err := s.Collections(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"/pets"}, collections)

			deleted, err := s.Delete(ctx, "/pets", "/rex")
			require.NoError(t, err)
			assert.Equal(t, "/Rex", deleted.Name)

			cleared, err := s.DeleteCollection(ctx, "/pets")
			require.NoError(t, err)
			assert.Len(t, cleared, 1)

			collections, err = s.Collections(ctx)
			require.NoError(t, err)
			assert.Empty(t, collections)
			assert.NoError(t, s.Close())
		})
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().List(ctx, "/pets")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r := &Resource{Collection: "/pets", Name: "/a", Data: json.RawMessage(`{"x":1}`)}
	_, err := s.Save(ctx, "/pets", "/a", r)
	require.NoError(t, err)
	r.Data[2] = 'y'

	got, err := s.Get(ctx, "/pets", "/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got.Data))
}

func TestFileStoreReloads(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = fs.Save(ctx, "/api/pets", "/fido", &Resource{Collection: "/api/pets", Name: "/Fido", Data: json.RawMessage(`{"Name":"Fido"}`)})
	require.NoError(t, err)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "/api/pets", "/fido")
	require.NoError(t, err)
	assert.Equal(t, "/api/pets/Fido", got.Path())

	_, err = reopened.DeleteCollection(ctx, "/api/pets")
	require.NoError(t, err)
	again, err := NewFileStore(dir)
	require.NoError(t, err)
	collections, err := again.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, collections)
}

func TestCollectionNormalizesKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	loose := Open(s, apitest.Routing{}, "/api/Pets/")
	_, err := loose.Put(ctx, "Fido", json.RawMessage(`{"Name":"Fido"}`))
	require.NoError(t, err)

	got, err := Open(s, apitest.Routing{}, "/api/pets").Get(ctx, "/FIDO")
	require.NoError(t, err)
	assert.Equal(t, "/Fido", got.Name)
	assert.Equal(t, "/api/Pets", got.Collection)

	_, err = Open(s, apitest.Routing{Case: true}, "/api/pets").Get(ctx, "/Fido")
	assert.True(t, errors.Is(err, ErrNotFound))

	missing, err := loose.Delete(ctx, "/nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSplit(t *testing.T) {
	collection, name := Split("/api/pets/Fido")
	assert.Equal(t, "/api/pets", collection)
	assert.Equal(t, "/Fido", name)

	collection, name = Split("/api/pets/Fido/")
	assert.Equal(t, "/api/pets", collection)
	assert.Equal(t, "/Fido", name)
}

func TestMemoryStoreConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := Open(s, nil, "/pets")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i%26))
			_, _ = c.Put(ctx, name, json.RawMessage(`{}`))
			_, _ = c.List(ctx)
			_, _ = c.Get(ctx, name)
		}(i)
	}
	wg.Wait()

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 26)
}
