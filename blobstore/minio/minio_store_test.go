package minio

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/vecdir/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "/indexes/")
	assert.Equal(t, "indexes/a/index.bin", s.key("a/index.bin"))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "a/index.bin", s.key("a/index.bin"))
}

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New(Config{Endpoint: "http://bad endpoint"})
	assert.Error(t, err)
}

// TestMinioStore_Integration requires a running MinIO instance at
// VECDIR_MINIO_ENDPOINT.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("VECDIR_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("VECDIR_MINIO_ENDPOINT not set")
	}
	bucket := "test-vecdir"

	store, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
		Prefix:    "test-prefix",
	})
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := store.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := store.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "a/index.bin", data))

	got, err := blobstore.ReadAll(ctx, store, "a/index.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/index.bin"}, names)

	require.NoError(t, store.Delete(ctx, "a/index.bin"))
	_, err = store.Open(ctx, "a/index.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
