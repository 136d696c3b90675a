package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/brakebee-search/internal/api/handlers"
	"github.com/zatekoja/brakebee-search/internal/api/routes"
	"github.com/zatekoja/brakebee-search/internal/application/services"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
)

type noHits struct{}

func (noHits) Rank(ctx context.Context, q entities.SearchQuery) ([]entities.RelevanceHit, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	agg := services.NewResultAggregator(noHits{}, providers.FetcherRegistry{}, services.AggregatorConfig{}, nil)
	store := services.NewSessionStore(agg, 10, time.Minute, nil)
	t.Cleanup(store.Close)
	h := handlers.NewSearchHandler(store, services.NewSuggestionService(agg), nil, 20)
	return routes.NewRouter(h, nil, []string{"https://brakebee.com"}, nil).SetupRoutes()
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_SearchRoutes(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"sunset"}`))
	req.Header.Set("Origin", "https://brakebee.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(handlers.SessionHeader)
	assert.NotEmpty(t, session)
	assert.Equal(t, "https://brakebee.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/search/view?sort=newest", nil)
	req.Header.Set(handlers.SessionHeader, session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search/suggest?q=s", nil))
	assert.JSONEq(t, `{"suggestions":[],"count":0}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search/zero-results", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
