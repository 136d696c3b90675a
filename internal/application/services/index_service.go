package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
)

// IndexBatchSize is the catalog page size used while reindexing
const IndexBatchSize = 100

// IndexSummary counts the outcome of one reindex run
type IndexSummary struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
	ByCategory     map[entities.Category]int
}

// IndexService keeps the search index in step with the catalog
type IndexService struct {
	catalog     repositories.CatalogRepository
	index       providers.SearchIndex
	workerCount int
}

// NewIndexService creates a new index service
func NewIndexService(catalog repositories.CatalogRepository, index providers.SearchIndex, workers int) *IndexService {
	if workers <= 0 {
		workers = 1
	}
	return &IndexService{
		catalog:     catalog,
		index:       index,
		workerCount: workers,
	}
}

// Reindex pages through the catalog for each category and upserts every
// record. With reset the collections are dropped first.
func (s *IndexService) Reindex(ctx context.Context, categories []entities.Category, reset bool) (*IndexSummary, error) {
	if len(categories) == 0 {
		categories = entities.AllCategories()
	}
	if reset {
		if err := s.index.ResetCollections(ctx, categories); err != nil {
			return nil, fmt.Errorf("failed to reset collections: %w", err)
		}
	}
	if err := s.index.EnsureCollections(ctx, categories); err != nil {
		return nil, fmt.Errorf("failed to ensure collections: %w", err)
	}

	var processed, success, failure int64
	var mu sync.Mutex
	byCategory := make(map[entities.Category]int, len(categories))

	recChan := make(chan entities.Record, IndexBatchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range recChan {
				err := s.index.Upsert(ctx, rec)
				atomic.AddInt64(&processed, 1)
				if err != nil {
					atomic.AddInt64(&failure, 1)
					log.Warn().Err(err).
						Str("category", string(rec.Category())).
						Str("id", rec.RecordID()).
						Msg("Failed to index record")
					continue
				}
				atomic.AddInt64(&success, 1)
				mu.Lock()
				byCategory[rec.Category()]++
				mu.Unlock()
			}
		}()
	}

	produceErr := s.produce(ctx, categories, recChan)
	close(recChan)
	wg.Wait()
	if produceErr != nil {
		return nil, produceErr
	}

	return &IndexSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(success),
		FailureCount:   int(failure),
		ByCategory:     byCategory,
	}, nil
}

func (s *IndexService) produce(ctx context.Context, categories []entities.Category, out chan<- entities.Record) error {
	for _, category := range categories {
		offset := 0
		for {
			records, err := s.catalog.List(ctx, category, IndexBatchSize, offset)
			if err != nil {
				return fmt.Errorf("failed to list %s records: %w", category, err)
			}
			for _, rec := range records {
				select {
				case out <- rec:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if len(records) < IndexBatchSize {
				break
			}
			offset += len(records)
		}
	}
	return nil
}

// Apply brings the index up to date for one catalog change
func (s *IndexService) Apply(ctx context.Context, event *entities.EntityEvent) error {
	if event == nil || !event.Category.Valid() || event.EntityID == "" {
		return fmt.Errorf("invalid catalog event")
	}
	if event.Type == entities.EntityEventDeleted {
		return s.index.Delete(ctx, event.Category, event.EntityID)
	}

	found, err := s.catalog.GetByIDs(ctx, event.Category, []string{event.EntityID})
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", event.Category, event.EntityID, err)
	}
	rec, ok := found[event.EntityID]
	if !ok {
		return s.index.Delete(ctx, event.Category, event.EntityID)
	}
	return s.index.Upsert(ctx, rec)
}

// Watch applies catalog events until ctx is done or the subscription closes
func (s *IndexService) Watch(ctx context.Context, bus providers.EventBus) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to catalog updates: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event == nil {
				continue
			}
			if err := s.Apply(ctx, event); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to apply catalog event to index")
			}
		}
	}
}
