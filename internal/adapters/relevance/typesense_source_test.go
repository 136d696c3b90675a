package relevance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	typesenseclient "github.com/zatekoja/brakebee-search/internal/infrastructure/clients/typesense"
)

func int64Ptr(v int64) *int64 { return &v }

func TestHitsFromResult_NormalisesTextMatch(t *testing.T) {
	hits := hitsFromResult(entities.CategoryArtist, []api.SearchResultHit{
		{Document: &map[string]interface{}{"id": "a1"}, TextMatch: int64Ptr(400)},
		{Document: &map[string]interface{}{"id": "a2"}, TextMatch: int64Ptr(100)},
		{Document: &map[string]interface{}{"name": "no id"}, TextMatch: int64Ptr(300)},
		{Document: nil},
	})

	require.Len(t, hits, 2)
	assert.Equal(t, entities.RelevanceHit{ID: "a1", Relevance: 1, Category: entities.CategoryArtist}, hits[0])
	assert.Equal(t, entities.RelevanceHit{ID: "a2", Relevance: 0.25, Category: entities.CategoryArtist}, hits[1])
}

func TestTypesenseSource_RankAcrossCollections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}/documents/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.PathValue("name") {
		case "products":
			w.Write([]byte(`{"found": 2, "hits": [
				{"document": {"id": "7", "name": "Raku Bowl"}, "text_match": 200},
				{"document": {"id": "3", "name": "Raku Cup"}, "text_match": 100}
			]}`))
		case "events":
			w.Write([]byte(`{"found": 1, "hits": [{"document": {"id": "9", "name": "Raku Firing Day"}, "text_match": 50}]}`))
		default:
			w.Write([]byte(`{"found": 0, "hits": []}`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := typesenseclient.Wrap(typesense.NewClient(typesense.WithServer(srv.URL), typesense.WithAPIKey("xyz")))
	source := NewTypesenseSource(client)

	q := entities.NewSearchQuery("raku", []entities.Category{entities.CategoryProduct, entities.CategoryArticle, entities.CategoryEvent}, 10)
	hits, err := source.Rank(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []entities.RelevanceHit{
		{ID: "7", Relevance: 1, Category: entities.CategoryProduct},
		{ID: "3", Relevance: 0.5, Category: entities.CategoryProduct},
		{ID: "9", Relevance: 1, Category: entities.CategoryEvent},
	}, hits)
}

func TestTypesenseSource_PagesPastPerPageCap(t *testing.T) {
	const total = 300

	var mu sync.Mutex
	var perPages []int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}/documents/search", func(w http.ResponseWriter, r *http.Request) {
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		mu.Lock()
		perPages = append(perPages, perPage)
		mu.Unlock()
		if perPage > typesenseMaxPerPage {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "Only upto 250 hits can be fetched per page."}`))
			return
		}

		var docs []string
		for i := (page - 1) * perPage; i < total && i < page*perPage; i++ {
			docs = append(docs, fmt.Sprintf(`{"document": {"id": "%d"}, "text_match": %d}`, i+1, total-i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"found": %d, "hits": [%s]}`, total, strings.Join(docs, ","))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := typesenseclient.Wrap(typesense.NewClient(typesense.WithServer(srv.URL), typesense.WithAPIKey("xyz")))
	source := NewTypesenseSource(client)

	q := entities.NewSearchQuery("raku", []entities.Category{entities.CategoryProduct}, 280)
	hits, err := source.Rank(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, hits, 280)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, 1.0, hits[0].Relevance)
	assert.Equal(t, "280", hits[279].ID)
	assert.Equal(t, []int{typesenseMaxPerPage, typesenseMaxPerPage}, perPages)
}

func TestTypesenseSource_LiteralQueryCoversAllCollections(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}/documents/search", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.PathValue("name")] = true
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found": 0, "hits": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := typesenseclient.Wrap(typesense.NewClient(typesense.WithServer(srv.URL), typesense.WithAPIKey("xyz")))
	source := NewTypesenseSource(client)

	_, err := source.Rank(context.Background(), entities.SearchQuery{Text: "raku"})
	require.NoError(t, err)
	assert.Len(t, seen, len(entities.AllCategories()))
}
