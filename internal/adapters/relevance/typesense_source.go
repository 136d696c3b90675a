package relevance

import (
	"context"
	"fmt"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	typesenseclient "github.com/zatekoja/brakebee-search/internal/infrastructure/clients/typesense"
	"golang.org/x/sync/errgroup"
)

// typesenseMaxPerPage is the largest per_page Typesense accepts
const typesenseMaxPerPage = 250

// TypesenseSource ranks ids with the per-category search collections
// maintained by the indexer. Relevance is text_match scaled to the best
// hit of its category.
type TypesenseSource struct {
	client *typesenseclient.Client
}

// NewTypesenseSource creates a Typesense-backed relevance source
func NewTypesenseSource(client *typesenseclient.Client) *TypesenseSource {
	return &TypesenseSource{client: client}
}

var _ providers.RelevanceSource = (*TypesenseSource)(nil)

// Rank implements providers.RelevanceSource. Any failing category fails the call.
func (s *TypesenseSource) Rank(ctx context.Context, query entities.SearchQuery) ([]entities.RelevanceHit, error) {
	categories := query.RequestedCategories()
	perCategory := make([][]entities.RelevanceHit, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			hits, err := s.searchCategory(gctx, category, query.Text, query.Limit)
			if err != nil {
				return err
			}
			perCategory[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []entities.RelevanceHit
	for _, hits := range perCategory {
		out = append(out, hits...)
	}
	return out, nil
}

// searchCategory pages through one collection until limit hits are
// collected or the collection runs out.
func (s *TypesenseSource) searchCategory(ctx context.Context, category entities.Category, text string, limit int) ([]entities.RelevanceHit, error) {
	if limit <= 0 {
		limit = entities.DefaultSearchLimit
	}
	perPage := min(limit, typesenseMaxPerPage)
	name := typesenseclient.CollectionName(category)

	var collected []api.SearchResultHit
	for page := 1; len(collected) < limit; page++ {
		params := &api.SearchCollectionParams{
			Q:       pointer.String(text),
			QueryBy: pointer.String("name,summary"),
			PerPage: pointer.Int(perPage),
			Page:    pointer.Int(page),
		}

		result, err := s.client.Client().Collection(name).Documents().Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", name, err)
		}
		if result.Hits == nil {
			break
		}
		collected = append(collected, *result.Hits...)
		if len(*result.Hits) < perPage {
			break
		}
		if result.Found != nil && len(collected) >= *result.Found {
			break
		}
	}
	if len(collected) > limit {
		collected = collected[:limit]
	}
	return hitsFromResult(category, collected), nil
}

func hitsFromResult(category entities.Category, hits []api.SearchResultHit) []entities.RelevanceHit {
	var best int64
	for _, h := range hits {
		if h.TextMatch != nil && *h.TextMatch > best {
			best = *h.TextMatch
		}
	}

	out := make([]entities.RelevanceHit, 0, len(hits))
	for _, h := range hits {
		if h.Document == nil {
			continue
		}
		id, ok := (*h.Document)["id"].(string)
		if !ok || id == "" {
			continue
		}
		relevance := 1.0
		if best > 0 {
			relevance = 0
			if h.TextMatch != nil {
				relevance = float64(*h.TextMatch) / float64(best)
			}
		}
		out = append(out, entities.RelevanceHit{
			ID:        id,
			Relevance: relevance,
			Category:  category,
		})
	}
	return out
}
