package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
)

const analyticsWriteTimeout = 5 * time.Second

type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// NewSearchEvent describes a completed aggregation
func NewSearchEvent(rs *entities.ResultSet, sessionID string, latency time.Duration) *entities.SearchEvent {
	requested := rs.Query.RequestedCategories()
	categories := make([]string, 0, len(requested))
	for _, c := range requested {
		categories = append(categories, string(c))
	}
	return &entities.SearchEvent{
		ID:            uuid.NewString(),
		Query:         rs.Query.Text,
		Categories:    categories,
		ResultCount:   rs.Total(),
		FailedFetches: rs.FailedFetches,
		LatencyMs:     int(latency.Milliseconds()),
		UserID:        rs.Query.UserID,
		SessionID:     sessionID,
		CreatedAt:     time.Now().UTC(),
	}
}

// TrackSearch logs the event in the background; it never blocks or fails the search
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	go func() {
		// The request context is likely cancelled by the time this runs
		bgCtx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()

		if err := s.repo.LogEvent(bgCtx, event); err != nil {
			log.Warn().Err(err).Str("query", event.Query).Msg("Failed to log search event")
		}
	}()
}

func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return s.repo.GetZeroResultQueries(ctx, limit)
}
