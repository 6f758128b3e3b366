package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/config"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
	"github.com/Ambro19/pixelperfect-sub000/internal/storage"
	"github.com/Ambro19/pixelperfect-sub000/internal/storage/local"
	memoryblobs "github.com/Ambro19/pixelperfect-sub000/internal/storage/memory"
)

func stubRemoteStore(t *testing.T, store screenshot.BlobStore, err error) {
	t.Helper()
	orig := newRemoteStore
	newRemoteStore = func(context.Context, config.Config) (screenshot.BlobStore, error) {
		return store, err
	}
	t.Cleanup(func() { newRemoteStore = orig })
}

func blobConfig(t *testing.T, bucket string) config.Config {
	t.Helper()
	return config.Config{
		Storage: config.StorageConfig{
			GCSBucket:      bucket,
			LocalDir:       t.TempDir(),
			LocalURLPrefix: "/files",
		},
	}
}

func TestBuildBlobStoreLocalWhenRemoteUnconfigured(t *testing.T) {
	cfg := blobConfig(t, "")

	store, dir, err := buildBlobStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.LocalDir, dir)
	assert.IsType(t, &local.Store{}, store)
}

func TestBuildBlobStoreLocalWhenBucketIsPlaceholder(t *testing.T) {
	cfg := blobConfig(t, "your-bucket-name")

	store, _, err := buildBlobStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &local.Store{}, store)
}

func TestBuildBlobStoreDegradesToLocalWhenProbeFails(t *testing.T) {
	stubRemoteStore(t, nil, errors.New("bucket unreachable"))
	cfg := blobConfig(t, "captures-prod")

	store, dir, err := buildBlobStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.LocalDir, dir)
	assert.IsType(t, &local.Store{}, store)
}

func TestBuildBlobStoreWrapsReachableRemoteInFailover(t *testing.T) {
	stubRemoteStore(t, memoryblobs.New(), nil)
	cfg := blobConfig(t, "captures-prod")

	store, dir, err := buildBlobStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.LocalDir, dir)
	assert.IsType(t, &storage.Failover{}, store)
}
