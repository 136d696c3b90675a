package routes

import (
	"net/http"

	"github.com/zatekoja/brakebee-search/internal/api/handlers"
	"github.com/zatekoja/brakebee-search/internal/api/middleware"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	searchHandler  *handlers.SearchHandler
	suggestCache   *middleware.ResponseCache
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. suggestCache may be nil.
func NewRouter(
	searchHandler *handlers.SearchHandler,
	suggestCache *middleware.ResponseCache,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		searchHandler:  searchHandler,
		suggestCache:   suggestCache,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Search endpoints
	r.mux.HandleFunc("POST /api/search", r.searchHandler.Search)
	r.mux.HandleFunc("GET /api/search/view", r.searchHandler.View)
	r.mux.Handle("GET /api/search/suggest", r.suggestCache.Middleware(http.HandlerFunc(r.searchHandler.Suggest)))

	// Analytics endpoints
	r.mux.HandleFunc("GET /api/search/zero-results", r.searchHandler.ZeroResultQueries)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	// CORS wraps everything so preflight requests never reach the mux
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
