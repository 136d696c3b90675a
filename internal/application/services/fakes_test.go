package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

// fakeRelevance is a scripted relevance source
type fakeRelevance struct {
	mu     sync.Mutex
	calls  int
	hits   []entities.RelevanceHit
	err    error
	rankFn func(ctx context.Context, q entities.SearchQuery) ([]entities.RelevanceHit, error)
}

func (f *fakeRelevance) Rank(ctx context.Context, q entities.SearchQuery) ([]entities.RelevanceHit, error) {
	f.mu.Lock()
	f.calls++
	fn := f.rankFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return f.hits, f.err
}

func (f *fakeRelevance) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// inFlightProbe tracks the peak number of concurrent fetches across fetchers
type inFlightProbe struct {
	current int32
	peak    int32
}

func (p *inFlightProbe) enter() {
	n := atomic.AddInt32(&p.current, 1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			return
		}
	}
}

func (p *inFlightProbe) leave() { atomic.AddInt32(&p.current, -1) }

func (p *inFlightProbe) Peak() int { return int(atomic.LoadInt32(&p.peak)) }

// fakeFetcher serves records from memory with optional per-id errors and delays.
// Delays honour context cancellation.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]entities.Record
	errs    map[string]error
	delays  map[string]time.Duration
	calls   map[string]int
	probe   *inFlightProbe
}

func newFakeFetcher(records ...entities.Record) *fakeFetcher {
	f := &fakeFetcher{
		records: make(map[string]entities.Record),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
		calls:   make(map[string]int),
	}
	for _, r := range records {
		f.records[r.RecordID()] = r
	}
	return f
}

func (f *fakeFetcher) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	if f.probe != nil {
		f.probe.enter()
		defer f.probe.leave()
	}

	f.mu.Lock()
	f.calls[id]++
	rec, err, delay := f.records[id], f.errs[id], f.delays[id]
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("record %s not found", id))
	}
	return rec, nil
}

func (f *fakeFetcher) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func mustRecord(t *testing.T, c entities.Category, fields map[string]interface{}) entities.Record {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	rec, err := entities.DecodeRecord(c, data)
	require.NoError(t, err)
	return rec
}

func product(t *testing.T, id, name string, price interface{}) entities.Record {
	return mustRecord(t, entities.CategoryProduct, map[string]interface{}{
		"id":    id,
		"name":  name,
		"price": price,
	})
}

func artist(t *testing.T, id, name string) entities.Record {
	return mustRecord(t, entities.CategoryArtist, map[string]interface{}{
		"id":           id,
		"display_name": name,
	})
}

func article(t *testing.T, id, title, publishedAt string) entities.Record {
	return mustRecord(t, entities.CategoryArticle, map[string]interface{}{
		"article": map[string]interface{}{
			"id":           id,
			"title":        title,
			"published_at": publishedAt,
		},
	})
}

func hit(c entities.Category, id string, relevance float64) entities.RelevanceHit {
	return entities.RelevanceHit{ID: id, Category: c, Relevance: relevance}
}

func resultIDs(results []entities.EnrichedResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
