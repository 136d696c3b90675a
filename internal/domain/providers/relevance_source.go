package providers

import (
	"context"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// RelevanceSource ranks entity ids for a query across categories
type RelevanceSource interface {
	// Rank returns hits in relevance order. Categories without hits may be
	// absent. Any error makes the whole search unavailable.
	Rank(ctx context.Context, query entities.SearchQuery) ([]entities.RelevanceHit, error)
}
