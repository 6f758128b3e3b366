// Package storage combines blob store implementations behind the selection
// and failover policy: prefer the remote object store when configured and
// reachable, fall back to local disk without losing data.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Failover wraps a remote store with a local fallback. The choice of remote
// vs local-only is made once at startup; this type only handles per-call
// degradation when the remote store errors.
type Failover struct {
	remote screenshot.BlobStore
	local  screenshot.BlobStore
	logger *zap.Logger
}

// NewFailover constructs a Failover store.
func NewFailover(remote, local screenshot.BlobStore, logger *zap.Logger) *Failover {
	return &Failover{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

// Put writes to the remote store, degrading to local disk for this single
// call on remote failure. Only when both writes fail does the put fail, so
// a degraded remote never silently loses data.
func (f *Failover) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	url, remoteErr := f.remote.Put(ctx, key, contentType, data)
	if remoteErr == nil {
		return url, nil
	}
	f.logger.Warn("remote storage put failed, falling back to local disk",
		zap.String("key", key),
		zap.Error(remoteErr),
	)
	metrics.IncStorageFallback()

	url, localErr := f.local.Put(ctx, key, contentType, data)
	if localErr != nil {
		return "", fmt.Errorf("%w: remote: %v; local: %v", screenshot.ErrStorage, remoteErr, localErr)
	}
	return url, nil
}

// Delete removes the key from both backends, since a degraded put may have
// landed the object locally. Returns true when either backend held it.
func (f *Failover) Delete(ctx context.Context, key string) (bool, error) {
	remoteDeleted, remoteErr := f.remote.Delete(ctx, key)
	localDeleted, localErr := f.local.Delete(ctx, key)
	if remoteErr != nil && localErr != nil {
		return false, fmt.Errorf("%w: remote: %v; local: %v", screenshot.ErrStorage, remoteErr, localErr)
	}
	return remoteDeleted || localDeleted, nil
}
