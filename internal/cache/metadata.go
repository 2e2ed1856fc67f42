package cache

import (
	"context"
	"time"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/provider"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const metadataCacheType = "metadata"

// MetadataCache is a provider.Provider that serves FetchMetadata from Redis
// when it can. Downloads pass straight through. Redis failures degrade to
// calling the wrapped provider.
type MetadataCache struct {
	next   provider.Provider
	cache  *Cache
	ttl    time.Duration
	logger *logging.Logger
}

// NewMetadataCache wraps next with a Redis metadata cache
func NewMetadataCache(next provider.Provider, cache *Cache, ttl time.Duration, logger *logging.Logger) *MetadataCache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MetadataCache{next: next, cache: cache, ttl: ttl, logger: logger}
}

// FetchMetadata implements provider.Provider
func (m *MetadataCache) FetchMetadata(ctx context.Context, url string) (*models.VideoInfo, error) {
	info, err := m.cache.GetInfo(ctx, url)
	if err != nil {
		m.logger.WarnWithErr("Metadata cache read failed", err)
		metrics.RecordError("cache", "read")
	}
	if info != nil {
		metrics.RecordCacheAccess(metadataCacheType, true)
		return info, nil
	}
	metrics.RecordCacheAccess(metadataCacheType, false)

	info, err = m.next.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := m.cache.SetInfo(ctx, url, info, m.ttl); err != nil {
		m.logger.WarnWithErr("Metadata cache write failed", err)
		metrics.RecordError("cache", "write")
	}
	return info, nil
}

// Download implements provider.Provider
func (m *MetadataCache) Download(ctx context.Context, req *provider.DownloadRequest) error {
	return m.next.Download(ctx, req)
}
