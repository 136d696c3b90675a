package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes values from cache
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

// RecordCacheKey is the cache key of one catalog record
func RecordCacheKey(category entities.Category, id string) string {
	return fmt.Sprintf("record:%s:%s", category, id)
}

// RecordCachePattern matches every cached record of a category
func RecordCachePattern(category entities.Category) string {
	return fmt.Sprintf("record:%s:*", category)
}
