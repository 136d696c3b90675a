package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

// Aggregator runs one federated search
type Aggregator interface {
	Aggregate(ctx context.Context, query entities.SearchQuery) (*entities.ResultSet, error)
}

// AggregatorConfig bounds the work done by one aggregation
type AggregatorConfig struct {
	// MaxConcurrentFetches caps in-flight enrichment fetches across all categories
	MaxConcurrentFetches int
	RelevanceTimeout     time.Duration
	FetchTimeout         time.Duration
}

// DefaultAggregatorConfig returns the production defaults
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		MaxConcurrentFetches: 8,
		RelevanceTimeout:     10 * time.Second,
		FetchTimeout:         5 * time.Second,
	}
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	d := DefaultAggregatorConfig()
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if c.RelevanceTimeout <= 0 {
		c.RelevanceTimeout = d.RelevanceTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// ResultAggregator ranks a query with the relevance source and enriches every
// hit through the fetcher registered for its category.
//
// Only a relevance failure fails an aggregation. A hit whose record cannot be
// fetched is dropped from the result set and counted in FailedFetches.
type ResultAggregator struct {
	relevance providers.RelevanceSource
	fetchers  providers.FetcherRegistry
	cfg       AggregatorConfig
	metrics   *observability.Metrics
}

// NewResultAggregator creates a new aggregator; zero config values use the defaults
func NewResultAggregator(
	relevance providers.RelevanceSource,
	fetchers providers.FetcherRegistry,
	cfg AggregatorConfig,
	metrics *observability.Metrics,
) *ResultAggregator {
	return &ResultAggregator{
		relevance: relevance,
		fetchers:  fetchers,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
	}
}

// Aggregate implements Aggregator
func (a *ResultAggregator) Aggregate(ctx context.Context, query entities.SearchQuery) (*entities.ResultSet, error) {
	rs := entities.NewResultSet(query)
	if query.IsEmpty() {
		return rs, nil
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "search.aggregate")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("search.query", query.Text),
		attribute.Int("search.limit", query.Limit),
	)
	logger := observability.LoggerFromContext(ctx)

	hits, err := a.rank(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.RecordRelevanceFailure(ctx, a.metrics)
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("query", query.Text).Msg("Relevance source failed")
		return nil, apperrors.NewSearchUnavailableError("search failed", err)
	}

	byCategory := a.partition(ctx, query, hits)

	enrichCtx, enrichSpan := observability.StartSpan(ctx, "search.enrich")
	sem := semaphore.NewWeighted(int64(a.cfg.MaxConcurrentFetches))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for category, categoryHits := range byCategory {
		fetcher, _ := a.fetchers.Lookup(category)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, failed := enrichAll(enrichCtx, sem, a.cfg.FetchTimeout, fetcher, categoryHits, a.onFetchFailure)
			mu.Lock()
			rs.ByCategory[category] = results
			rs.FailedFetches += failed
			mu.Unlock()
		}()
	}
	wg.Wait()
	enrichSpan.End()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	total := rs.Total()
	observability.RecordSearch(ctx, a.metrics, total, time.Since(start))
	observability.SetSpanAttributes(span,
		attribute.Int("search.results", total),
		attribute.Int("search.failed_fetches", rs.FailedFetches),
	)
	logger.Info().
		Str("query", query.Text).
		Int("hits", len(hits)).
		Int("results", total).
		Int("failed_fetches", rs.FailedFetches).
		Dur("duration", time.Since(start)).
		Msg("Search aggregated")

	return rs, nil
}

func (a *ResultAggregator) rank(ctx context.Context, query entities.SearchQuery) ([]entities.RelevanceHit, error) {
	ctx, span := observability.StartSpan(ctx, "search.relevance")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RelevanceTimeout)
	defer cancel()

	hits, err := a.relevance.Rank(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.SetSpanAttributes(span, attribute.Int("search.hits", len(hits)))
	return hits, nil
}

// partition groups hits by category, keeping relevance order within each
func (a *ResultAggregator) partition(ctx context.Context, query entities.SearchQuery, hits []entities.RelevanceHit) map[entities.Category][]entities.RelevanceHit {
	logger := observability.LoggerFromContext(ctx)
	out := make(map[entities.Category][]entities.RelevanceHit)
	for _, hit := range hits {
		if !query.Requests(hit.Category) {
			logger.Debug().Str("category", string(hit.Category)).Str("id", hit.ID).Msg("Ignoring hit for unrequested category")
			continue
		}
		if _, ok := a.fetchers.Lookup(hit.Category); !ok {
			logger.Debug().Str("category", string(hit.Category)).Str("id", hit.ID).Msg("Ignoring hit without a registered fetcher")
			continue
		}
		out[hit.Category] = append(out[hit.Category], hit)
	}
	return out
}

func (a *ResultAggregator) onFetchFailure(ctx context.Context, hit entities.RelevanceHit, err error) {
	observability.RecordFetchFailure(ctx, a.metrics, string(hit.Category))
	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("category", string(hit.Category)).
		Str("id", hit.ID).
		Bool("not_found", apperrors.IsNotFound(err)).
		Msg("Dropping search hit, record fetch failed")
}

// enrichAll fetches the record of every hit of one category. Each result is
// written into the slot of its hit, so the output keeps the input order no
// matter when fetches complete. Failed slots are dropped and counted.
// Duplicate ids are fetched once.
func enrichAll(
	ctx context.Context,
	sem *semaphore.Weighted,
	timeout time.Duration,
	fetcher providers.EntityFetcher,
	hits []entities.RelevanceHit,
	onFailure func(context.Context, entities.RelevanceHit, error),
) ([]entities.EnrichedResult, int) {
	slots := make([]entities.EnrichedResult, len(hits))
	positions := make(map[string][]int, len(hits))
	ids := make([]string, 0, len(hits))
	for i, hit := range hits {
		if _, seen := positions[hit.ID]; !seen {
			ids = append(ids, hit.ID)
		}
		positions[hit.ID] = append(positions[hit.ID], i)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := fetchOne(ctx, sem, timeout, fetcher, id)
			for _, i := range positions[id] {
				hit := hits[i]
				slots[i] = entities.EnrichedResult{
					ID:          hit.ID,
					Category:    hit.Category,
					Relevance:   hit.Relevance,
					Reason:      hit.Reason,
					Record:      rec,
					FetchFailed: err != nil,
				}
			}
			if err != nil && onFailure != nil {
				onFailure(ctx, hits[positions[id][0]], err)
			}
		}()
	}
	wg.Wait()

	results := make([]entities.EnrichedResult, 0, len(hits))
	failed := 0
	for _, slot := range slots {
		if slot.FetchFailed {
			failed++
			continue
		}
		results = append(results, slot)
	}
	return results, failed
}

func fetchOne(ctx context.Context, sem *semaphore.Weighted, timeout time.Duration, fetcher providers.EntityFetcher, id string) (entities.Record, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec, err := fetcher.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError("record " + id + " not found")
	}
	return rec, nil
}
