package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
)

// ResponseCachePrefix prefixes every cached HTTP response key
const ResponseCachePrefix = "http:cache:"

const responseCacheWriteTimeout = 2 * time.Second

// ResponseCache caches successful GET responses of session-independent
// routes, such as suggestions.
type ResponseCache struct {
	cache      providers.CacheProvider
	ttlSeconds int
	name       string
	metrics    *observability.Metrics
}

// NewResponseCache creates a response cache; name labels its keys and metrics
func NewResponseCache(cache providers.CacheProvider, name string, ttlSeconds int, metrics *observability.Metrics) *ResponseCache {
	return &ResponseCache{
		cache:      cache,
		ttlSeconds: ttlSeconds,
		name:       name,
		metrics:    metrics,
	}
}

// Middleware returns the cache middleware handler
func (m *ResponseCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.cache == nil || r.Method != http.MethodGet || m.ttlSeconds <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		cacheKey := m.cacheKey(r)

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			observability.RecordCacheHit(r.Context(), m.metrics, m.name)
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
		observability.RecordCacheMiss(r.Context(), m.metrics, m.name)
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode != http.StatusOK || recorder.body.Len() == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), responseCacheWriteTimeout)
		defer cancel()
		if err := m.cache.Set(ctx, cacheKey, recorder.body.Bytes(), m.ttlSeconds); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache response")
		}
	})
}

// cacheKey hashes the path and raw query to keep keys short
func (m *ResponseCache) cacheKey(r *http.Request) string {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return ResponseCachePrefix + m.name + ":" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
