package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

const (
	loaderWait         = 2 * time.Millisecond
	loaderMaxBatch     = 100
	loaderBatchTimeout = 5 * time.Second
)

// LoaderFetcher coalesces concurrent fetches of one category into a
// single repository query.
type LoaderFetcher struct {
	category entities.Category
	loader   *dataloader.Loader[string, entities.Record]
}

// NewLoaderFetcher creates a batching fetcher over repo. Results are not
// cached across batches; caching is the CachedFetcher's job.
func NewLoaderFetcher(repo repositories.CatalogRepository, category entities.Category) *LoaderFetcher {
	f := &LoaderFetcher{category: category}
	f.loader = dataloader.NewBatchedLoader(
		batchFn(repo, category),
		dataloader.WithWait[string, entities.Record](loaderWait),
		dataloader.WithBatchCapacity[string, entities.Record](loaderMaxBatch),
		dataloader.WithCache[string, entities.Record](&dataloader.NoCache[string, entities.Record]{}),
	)
	return f
}

// NewLoaderRegistry registers a batching fetcher for every category
func NewLoaderRegistry(repo repositories.CatalogRepository) providers.FetcherRegistry {
	registry := make(providers.FetcherRegistry)
	for _, c := range entities.AllCategories() {
		registry[c] = NewLoaderFetcher(repo, c)
	}
	return registry
}

type loadResult struct {
	rec entities.Record
	err error
}

// FetchByID implements providers.EntityFetcher. A batch is shared by every
// caller that joined it, so it runs detached from the caller that opened
// it; each caller still stops waiting when its own ctx is done.
func (f *LoaderFetcher) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thunk := f.loader.Load(context.WithoutCancel(ctx), id)

	done := make(chan loadResult, 1)
	go func() {
		rec, err := thunk()
		done <- loadResult{rec: rec, err: err}
	}()

	select {
	case res := <-done:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func batchFn(repo repositories.CatalogRepository, category entities.Category) dataloader.BatchFunc[string, entities.Record] {
	return func(ctx context.Context, ids []string) []*dataloader.Result[entities.Record] {
		ctx, cancel := context.WithTimeout(ctx, loaderBatchTimeout)
		defer cancel()

		results := make([]*dataloader.Result[entities.Record], len(ids))

		found, err := repo.GetByIDs(ctx, category, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[entities.Record]{Error: err}
			}
			return results
		}

		for i, id := range ids {
			if rec, ok := found[id]; ok {
				results[i] = &dataloader.Result[entities.Record]{Data: rec}
			} else {
				results[i] = &dataloader.Result[entities.Record]{
					Error: apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", category, id)),
				}
			}
		}
		return results
	}
}
