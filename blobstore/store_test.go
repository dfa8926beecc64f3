package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ifs "github.com/hupe1980/vecdir/internal/fs"
)

func testStoreContract(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, "tenants/a/index.bin", data))
	require.NoError(t, store.Put(ctx, "tenants/b/index.bin", []byte("b")))

	blob, err := store.Open(ctx, "tenants/a/index.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	n, err = blob.ReadAt(ctx, buf, int64(len(data))-2)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	all, err := ReadAll(ctx, store, "tenants/a/index.bin")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	require.NoError(t, store.Put(ctx, "tenants/a/index.bin", []byte("replaced")))
	all, err = ReadAll(ctx, store, "tenants/a/index.bin")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(all))

	names, err := store.List(ctx, "tenants/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tenants/a/index.bin", "tenants/b/index.bin"}, names)

	names, err = store.List(ctx, "tenants/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"tenants/b/index.bin"}, names)

	require.NoError(t, store.Delete(ctx, "tenants/a/index.bin"))
	require.NoError(t, store.Delete(ctx, "tenants/a/index.bin"))
	_, err = store.Open(ctx, "tenants/a/index.bin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	testStoreContract(t, NewLocalStore(root))

	_, err := os.Stat(filepath.Join(root, "tenants", "b", "index.bin"))
	require.NoError(t, err)
}

func TestLocalStore_WithFileSystem(t *testing.T) {
	root := t.TempDir()
	ffs := ifs.NewFaultyFS(nil)
	testStoreContract(t, NewLocalStore(root, WithFileSystem(ffs)))

	ctx := context.Background()
	store := NewLocalStore(root, WithFileSystem(ffs))
	require.NoError(t, store.Put(ctx, "x/index.bin", []byte("abc")))

	ffs.AddRule("index.bin", ifs.Fault{FailAfterBytes: -1, FailOnOpen: true})
	_, err := store.Open(ctx, "x/index.bin")
	require.ErrorIs(t, err, ifs.ErrInjected)

	ffs.ClearRules()
	b, err := store.Open(ctx, "x/index.bin")
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.(Mappable)
	assert.True(t, ok)
	assert.Equal(t, int64(3), b.Size())
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, store.Put(context.Background(), "x", data))
	data[0] = 'z'

	got, err := ReadAll(context.Background(), store, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
