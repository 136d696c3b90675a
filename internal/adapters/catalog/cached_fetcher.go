package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
)

// DefaultRecordTTL is the cache lifetime of a fetched record, in seconds
const DefaultRecordTTL = 300

const cacheWriteTimeout = 2 * time.Second

// CachedFetcher wraps an EntityFetcher with cache-aside record caching.
// Cache errors never fail a fetch.
type CachedFetcher struct {
	inner    providers.EntityFetcher
	cache    providers.CacheProvider
	category entities.Category
	ttl      int
	metrics  *observability.Metrics
}

// NewCachedFetcher creates a cached fetcher; ttl <= 0 uses DefaultRecordTTL
func NewCachedFetcher(inner providers.EntityFetcher, cache providers.CacheProvider, category entities.Category, ttl int, metrics *observability.Metrics) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	return &CachedFetcher{
		inner:    inner,
		cache:    cache,
		category: category,
		ttl:      ttl,
		metrics:  metrics,
	}
}

// WithCache decorates every fetcher of a registry
func WithCache(registry providers.FetcherRegistry, cache providers.CacheProvider, ttl int, metrics *observability.Metrics) providers.FetcherRegistry {
	out := make(providers.FetcherRegistry, len(registry))
	for c, f := range registry {
		out[c] = NewCachedFetcher(f, cache, c, ttl, metrics)
	}
	return out
}

// FetchByID implements providers.EntityFetcher
func (f *CachedFetcher) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	key := providers.RecordCacheKey(f.category, id)
	logger := observability.LoggerFromContext(ctx)

	cached, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		rec, decodeErr := entities.DecodeRecord(f.category, cached)
		if decodeErr == nil {
			observability.RecordCacheHit(ctx, f.metrics, string(f.category))
			return rec, nil
		}
		logger.Warn().Err(decodeErr).Str("key", key).Msg("Discarding undecodable cached record")
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Str("key", key).Msg("Record cache unavailable, fetching directly")
	}
	observability.RecordCacheMiss(ctx, f.metrics, string(f.category))

	rec, err := f.inner.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the search
	go func() {
		data, err := json.Marshal(rec)
		if err != nil {
			return
		}
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := f.cache.Set(bgCtx, key, data, f.ttl); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to cache record")
		}
	}()

	return rec, nil
}
