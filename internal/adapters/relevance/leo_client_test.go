package relevance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

func TestLeoClient_RankSendsContractAndOrdersHits(t *testing.T) {
	var got leoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"results": {
			"events": [{"id": 9, "relevance": 0.4}],
			"product": [{"id": "7", "relevance": 0.9, "reason": "glaze match"}, {"id": 3, "relevance": 0.8}],
			"vendors": [{"id": 1, "relevance": 1}]
		}}`))
	}))
	defer srv.Close()

	client := NewLeoClient(LeoConfig{URL: srv.URL}, srv.Client())
	q := entities.NewSearchQuery("raku", []entities.Category{entities.CategoryProduct, entities.CategoryEvent}, 20).WithUser("u-1")

	hits, err := client.Rank(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "raku", got.Query)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, 20, got.Options.Limit)
	assert.Equal(t, []string{"products", "events"}, got.Options.Categories)

	assert.Equal(t, []entities.RelevanceHit{
		{ID: "7", Relevance: 0.9, Category: entities.CategoryProduct, Reason: "glaze match"},
		{ID: "3", Relevance: 0.8, Category: entities.CategoryProduct},
		{ID: "9", Relevance: 0.4, Category: entities.CategoryEvent},
	}, hits)
}

func TestLeoClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`<html>`)) }},
		{"missing results", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"success": true}`)) }},
		{"results not a list", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"results": {"products": "7"}}`)) }},
		{"hit without id", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"results": {"products": [{"relevance": 1}]}}`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewLeoClient(LeoConfig{URL: srv.URL}, srv.Client())
			_, err := client.Rank(context.Background(), entities.NewSearchQuery("raku", nil, 5))
			assert.Error(t, err)
		})
	}
}

func TestLeoClient_EmptyResultsAreNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": {}}`))
	}))
	defer srv.Close()

	client := NewLeoClient(LeoConfig{URL: srv.URL}, srv.Client())
	hits, err := client.Rank(context.Background(), entities.NewSearchQuery("zzz", nil, 5))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLeoClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewLeoClient(LeoConfig{URL: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Minute}, srv.Client())
	q := entities.NewSearchQuery("raku", nil, 5)

	for i := 0; i < 2; i++ {
		_, err := client.Rank(context.Background(), q)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.Rank(context.Background(), q)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLeoClient_CancellationDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewLeoClient(LeoConfig{URL: srv.URL, BreakerFailures: 1, BreakerCooldown: time.Minute}, srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Rank(ctx, entities.NewSearchQuery("raku", nil, 5))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, client.State())
}
