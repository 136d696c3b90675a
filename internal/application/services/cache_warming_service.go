package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
)

// DefaultWarmPerCategory is how many records of each category are preloaded
const DefaultWarmPerCategory = 50

// CacheWarmingService preloads the record cache from the catalog so the
// first enrichments after a deploy or flush do not all miss.
type CacheWarmingService struct {
	catalog     repositories.CatalogRepository
	cache       providers.CacheProvider
	ttl         int
	perCategory int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	catalog repositories.CatalogRepository,
	cache providers.CacheProvider,
	ttlSeconds int,
	perCategory int,
) *CacheWarmingService {
	if perCategory <= 0 {
		perCategory = DefaultWarmPerCategory
	}
	return &CacheWarmingService{
		catalog:     catalog,
		cache:       cache,
		ttl:         ttlSeconds,
		perCategory: perCategory,
	}
}

// WarmCache caches the first page of every category and returns how many
// records were written. A failing category is logged and skipped.
func (s *CacheWarmingService) WarmCache(ctx context.Context) int {
	warmed := 0
	for _, category := range entities.AllCategories() {
		n, err := s.warmCategory(ctx, category)
		if err != nil {
			log.Warn().Err(err).Str("category", string(category)).Msg("Failed to warm record cache")
		}
		warmed += n
	}
	log.Debug().Int("records", warmed).Msg("Record cache warmed")
	return warmed
}

func (s *CacheWarmingService) warmCategory(ctx context.Context, category entities.Category) (int, error) {
	records, err := s.catalog.List(ctx, category, s.perCategory, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s records: %w", category, err)
	}

	warmed := 0
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			log.Warn().Err(err).Str("category", string(category)).Str("id", rec.RecordID()).Msg("Failed to marshal record")
			continue
		}
		if err := s.cache.Set(ctx, providers.RecordCacheKey(category, rec.RecordID()), data, s.ttl); err != nil {
			return warmed, fmt.Errorf("failed to cache %s %s: %w", category, rec.RecordID(), err)
		}
		warmed++
	}
	return warmed, nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}
