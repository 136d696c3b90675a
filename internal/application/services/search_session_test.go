package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/brakebee-search/internal/application/services"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
)

// stubbornFetcher ignores cancellation: it blocks every fetch until released
type stubbornFetcher struct {
	record  entities.Record
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *stubbornFetcher) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return f.record, nil
}

func animalSearch(t *testing.T) (*services.ResultAggregator, *stubbornFetcher) {
	cats := &stubbornFetcher{
		record:  product(t, "cat-1", "Cat Mug", 12),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	dogs := newFakeFetcher(product(t, "dog-1", "Dog Print", 30))

	relevance := &fakeRelevance{rankFn: func(ctx context.Context, q entities.SearchQuery) ([]entities.RelevanceHit, error) {
		switch q.Text {
		case "cats":
			return []entities.RelevanceHit{hit(entities.CategoryProduct, "cat-1", 0.9)}, nil
		case "dogs":
			return []entities.RelevanceHit{hit(entities.CategoryArtist, "dog-1", 0.9)}, nil
		}
		return nil, nil
	}}
	agg := newAggregator(relevance, providers.FetcherRegistry{
		entities.CategoryProduct: cats,
		entities.CategoryArtist:  providers.EntityFetcherFunc(func(ctx context.Context, id string) (entities.Record, error) {
			rec, err := dogs.FetchByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return artist(t, rec.RecordID(), rec.DisplayName()), nil
		}),
	}, services.AggregatorConfig{})
	return agg, cats
}

func TestSearchSession_LastQueryWins(t *testing.T) {
	agg, cats := animalSearch(t)
	session := services.NewSearchSession("s1", agg, nil)

	type outcome struct {
		rs  *entities.ResultSet
		gen uint64
		err error
	}
	catsDone := make(chan outcome, 1)
	go func() {
		rs, gen, err := session.Search(context.Background(), entities.NewSearchQuery("cats", nil, 20))
		catsDone <- outcome{rs, gen, err}
	}()

	select {
	case <-cats.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cats search never reached its fetch")
	}

	dogsRS, dogsGen, err := session.Search(context.Background(), entities.NewSearchQuery("dogs", nil, 20))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dogsGen)
	assert.Equal(t, []string{"dog-1"}, resultIDs(dogsRS.Results(entities.CategoryArtist)))

	// the cats fetch resolves only after dogs is showing
	close(cats.release)

	var catsResult outcome
	select {
	case catsResult = <-catsDone:
	case <-time.After(2 * time.Second):
		t.Fatal("cats search never returned")
	}
	assert.True(t, errors.Is(catsResult.err, services.ErrStaleSearch))
	assert.Nil(t, catsResult.rs)
	assert.Equal(t, uint64(1), catsResult.gen)

	held, ok := session.Results()
	require.True(t, ok)
	assert.Same(t, dogsRS, held)
	assert.Equal(t, "dogs", session.Query().Text)

	projected, ok := session.Project()
	require.True(t, ok)
	assert.Equal(t, []string{"dog-1"}, resultIDs(projected))
	assert.Equal(t, uint64(2), session.Generation())
}

func TestSearchSession_ErrorKeepsPreviousResults(t *testing.T) {
	relevance := &fakeRelevance{hits: []entities.RelevanceHit{hit(entities.CategoryProduct, "p1", 1)}}
	agg := newAggregator(relevance, providers.FetcherRegistry{
		entities.CategoryProduct: newFakeFetcher(product(t, "p1", "One", 1)),
	}, services.AggregatorConfig{})
	session := services.NewSearchSession("s1", agg, nil)

	first, _, err := session.Search(context.Background(), entities.NewSearchQuery("one", nil, 20))
	require.NoError(t, err)

	relevance.mu.Lock()
	relevance.err = errors.New("down")
	relevance.hits = nil
	relevance.mu.Unlock()

	_, gen, err := session.Search(context.Background(), entities.NewSearchQuery("two", nil, 20))
	require.Error(t, err)
	assert.Equal(t, uint64(2), gen)

	held, ok := session.Results()
	require.True(t, ok)
	assert.Same(t, first, held)
	assert.Equal(t, "one", session.Query().Text)
}

func TestSearchSession_ViewProjectsHeldResults(t *testing.T) {
	relevance := &fakeRelevance{hits: []entities.RelevanceHit{
		hit(entities.CategoryProduct, "p10", 0.9),
		hit(entities.CategoryProduct, "p5", 0.8),
		hit(entities.CategoryArtist, "a1", 0.7),
	}}
	products := newFakeFetcher(product(t, "p10", "Ten", 10), product(t, "p5", "Five", 5))
	agg := newAggregator(relevance, providers.FetcherRegistry{
		entities.CategoryProduct: products,
		entities.CategoryArtist:  newFakeFetcher(artist(t, "a1", "Ada")),
	}, services.AggregatorConfig{})
	session := services.NewSearchSession("s1", agg, nil)

	_, ok := session.Project()
	assert.False(t, ok)
	assert.Equal(t, entities.DefaultViewState(), session.View())

	_, _, err := session.Search(context.Background(), entities.NewSearchQuery("art", nil, 20))
	require.NoError(t, err)

	session.SetView(entities.ViewState{Category: entities.FilterFor(entities.CategoryProduct), Sort: entities.SortPriceAsc})
	projected, ok := session.Project()
	require.True(t, ok)
	assert.Equal(t, []string{"p5", "p10"}, resultIDs(projected))

	// changing the view never re-queries
	assert.Equal(t, 1, relevance.Calls())
	assert.Equal(t, 1, products.Calls("p10"))
}

func TestSearchSession_CancelDiscardsInFlightSearch(t *testing.T) {
	agg, cats := animalSearch(t)
	session := services.NewSearchSession("s1", agg, nil)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := session.Search(context.Background(), entities.NewSearchQuery("cats", nil, 20))
		errCh <- err
	}()
	<-cats.started

	session.Cancel()
	close(cats.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, services.ErrStaleSearch)
	case <-time.After(2 * time.Second):
		t.Fatal("search never returned")
	}
	_, ok := session.Results()
	assert.False(t, ok)
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := services.NewSessionStore(newAggregator(&fakeRelevance{}, providers.FetcherRegistry{}, services.AggregatorConfig{}), 10, time.Minute, nil)
	defer store.Close()

	created, isNew := store.GetOrCreate("")
	require.True(t, isNew)
	require.NotEmpty(t, created.ID())

	again, isNew := store.GetOrCreate(created.ID())
	assert.False(t, isNew)
	assert.Same(t, created, again)

	named, isNew := store.GetOrCreate("client-chosen")
	assert.True(t, isNew)
	assert.Equal(t, "client-chosen", named.ID())

	got, ok := store.Get("client-chosen")
	assert.True(t, ok)
	assert.Same(t, named, got)

	_, ok = store.Get("missing")
	assert.False(t, ok)
	_, ok = store.Get("")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestSessionStore_EvictionCancelsSession(t *testing.T) {
	store := services.NewSessionStore(newAggregator(&fakeRelevance{}, providers.FetcherRegistry{}, services.AggregatorConfig{}), 1, time.Minute, nil)
	defer store.Close()

	first, _ := store.GetOrCreate("a")
	assert.Equal(t, uint64(0), first.Generation())

	store.GetOrCreate("b")
	_, ok := store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), first.Generation(), "evicted session should be cancelled")
}

func TestSessionStore_ExpiresIdleSessions(t *testing.T) {
	store := services.NewSessionStore(newAggregator(&fakeRelevance{}, providers.FetcherRegistry{}, services.AggregatorConfig{}), 10, 50*time.Millisecond, nil)
	defer store.Close()

	store.GetOrCreate("idle")
	assert.Eventually(t, func() bool {
		_, ok := store.Get("idle")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionStore_CloseCancelsAll(t *testing.T) {
	store := services.NewSessionStore(newAggregator(&fakeRelevance{}, providers.FetcherRegistry{}, services.AggregatorConfig{}), 10, time.Minute, nil)

	a, _ := store.GetOrCreate("a")
	b, _ := store.GetOrCreate("b")
	store.Close()

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, uint64(1), a.Generation())
	assert.Equal(t, uint64(1), b.Generation())
}
