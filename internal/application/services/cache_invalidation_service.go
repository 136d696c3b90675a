package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops cached records when the catalog reports a change
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for catalog events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to catalog updates: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelCatalogUpdates).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.EntityEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.EntityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
	defer cancel()

	var err error
	if event.EntityID == "" {
		err = s.InvalidateCategory(ctx, event.Category)
	} else {
		err = s.InvalidateRecord(ctx, event.Category, event.EntityID)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Str("category", string(event.Category)).
			Str("id", event.EntityID).
			Msg("Failed to invalidate cached record")
		return
	}
	log.Debug().
		Str("event_id", event.ID).
		Str("category", string(event.Category)).
		Str("id", event.EntityID).
		Str("type", string(event.Type)).
		Msg("Invalidated cached record")
}

// InvalidateRecord drops the cached copy of one record
func (s *CacheInvalidationService) InvalidateRecord(ctx context.Context, category entities.Category, id string) error {
	if err := s.cache.Delete(ctx, providers.RecordCacheKey(category, id)); err != nil {
		return fmt.Errorf("failed to invalidate %s %s: %w", category, id, err)
	}
	return nil
}

// InvalidateCategory drops every cached record of a category.
// This scans the keyspace and is meant for bulk catalog changes.
func (s *CacheInvalidationService) InvalidateCategory(ctx context.Context, category entities.Category) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	if err := s.cache.DeletePattern(ctx, providers.RecordCachePattern(category)); err != nil {
		return fmt.Errorf("failed to invalidate %s records: %w", category, err)
	}
	return nil
}
