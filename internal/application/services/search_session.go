package services

import (
	"context"
	"errors"
	"sync"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
)

// ErrStaleSearch is returned by SearchSession.Search when a newer search on
// the same session started before this one finished.
var ErrStaleSearch = errors.New("search superseded by a newer query")

// SearchSession is one user's search state: the held result set, the
// current view, and the generation of the latest search.
//
// The last search issued wins. Starting a search cancels the one in flight,
// and a search only publishes its results while its generation is current.
type SearchSession struct {
	id         string
	aggregator Aggregator
	metrics    *observability.Metrics

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	query      entities.SearchQuery
	results    *entities.ResultSet
	view       entities.ViewState
}

// NewSearchSession creates an empty session
func NewSearchSession(id string, aggregator Aggregator, metrics *observability.Metrics) *SearchSession {
	return &SearchSession{
		id:         id,
		aggregator: aggregator,
		metrics:    metrics,
		view:       entities.DefaultViewState(),
	}
}

func (s *SearchSession) ID() string { return s.id }

// Generation returns the generation of the latest search started
func (s *SearchSession) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Search runs an aggregation for query and holds its result set. It returns
// the generation the search ran under. If a newer search started meanwhile,
// the result is discarded and ErrStaleSearch is returned; on any error the
// previously held result set is kept.
func (s *SearchSession) Search(ctx context.Context, query entities.SearchQuery) (*entities.ResultSet, uint64, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	rs, err := s.aggregator.Aggregate(runCtx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if gen != s.generation {
		observability.RecordStaleSearch(ctx, s.metrics)
		observability.LoggerFromContext(ctx).Debug().
			Str("session", s.id).
			Uint64("generation", gen).
			Uint64("current", s.generation).
			Str("query", query.Text).
			Msg("Discarding superseded search")
		return nil, gen, ErrStaleSearch
	}
	s.cancel = nil
	if err != nil {
		return nil, gen, err
	}
	s.query = query
	s.results = rs
	return rs, gen, nil
}

// SetView replaces the view used by Project
func (s *SearchSession) SetView(vs entities.ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = vs
}

func (s *SearchSession) View() entities.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Results returns the held result set, or false before any search completed
func (s *SearchSession) Results() (*entities.ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results, s.results != nil
}

// Query returns the query behind the held result set
func (s *SearchSession) Query() entities.SearchQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Project applies the current view to the held result set without any network call
func (s *SearchSession) Project() ([]entities.EnrichedResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil, false
	}
	return Project(s.results, s.view), true
}

// Cancel stops the search in flight, if any. Its result will be discarded.
func (s *SearchSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
