package providers

import (
	"context"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// EntityFetcher loads the full record for one id of a single category.
// A missing record is reported with a NOT_FOUND AppError; anything else
// is treated as a transient failure.
type EntityFetcher interface {
	FetchByID(ctx context.Context, id string) (entities.Record, error)
}

// EntityFetcherFunc adapts a function to EntityFetcher
type EntityFetcherFunc func(ctx context.Context, id string) (entities.Record, error)

func (f EntityFetcherFunc) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	return f(ctx, id)
}

// FetcherRegistry maps each category to its fetcher
type FetcherRegistry map[entities.Category]EntityFetcher

// Lookup returns the fetcher registered for c
func (r FetcherRegistry) Lookup(c entities.Category) (EntityFetcher, bool) {
	f, ok := r[c]
	return f, ok && f != nil
}

// Categories returns the registered categories in precedence order
func (r FetcherRegistry) Categories() []entities.Category {
	var out []entities.Category
	for _, c := range entities.AllCategories() {
		if _, ok := r.Lookup(c); ok {
			out = append(out, c)
		}
	}
	return out
}
