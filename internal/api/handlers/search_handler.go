package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/brakebee-search/internal/application/services"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

// SessionHeader carries the search session id in both directions
const SessionHeader = "X-Search-Session"

const (
	maxRequestBytes       = 64 << 10
	maxPage               = 50
	defaultZeroResultsMax = 20
	maxZeroResults        = 100
)

// Suggester produces autocomplete suggestions
type Suggester interface {
	Suggest(ctx context.Context, text string) ([]services.Suggestion, error)
}

// SearchTracker records completed searches
type SearchTracker interface {
	TrackSearch(ctx context.Context, event *entities.SearchEvent)
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	sessions  *services.SessionStore
	suggester Suggester
	tracker   SearchTracker
	pageSize  int
}

// NewSearchHandler creates a new search handler. tracker may be nil.
func NewSearchHandler(sessions *services.SessionStore, suggester Suggester, tracker SearchTracker, pageSize int) *SearchHandler {
	if pageSize <= 0 {
		pageSize = entities.DefaultSearchLimit
	}
	return &SearchHandler{
		sessions:  sessions,
		suggester: suggester,
		tracker:   tracker,
		pageSize:  pageSize,
	}
}

type searchRequest struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories"`
	Page       int      `json:"page"`
	Category   string   `json:"category"`
	Sort       string   `json:"sort"`
	UserID     string   `json:"user_id"`
}

type searchResult struct {
	ID        string            `json:"id"`
	Category  entities.Category `json:"category"`
	Relevance float64           `json:"relevance"`
	Reason    string            `json:"reason,omitempty"`
	Name      string            `json:"name"`
	Summary   string            `json:"summary,omitempty"`
	Price     *float64          `json:"price,omitempty"`
	Date      *time.Time        `json:"date,omitempty"`
	Record    entities.Record   `json:"record"`
}

type searchResponse struct {
	SessionID     string                    `json:"session_id"`
	Query         string                    `json:"query"`
	Generation    uint64                    `json:"generation"`
	Page          int                       `json:"page"`
	View          entities.ViewState        `json:"view"`
	Counts        map[entities.Category]int `json:"counts"`
	Total         int                       `json:"total"`
	FailedFetches int                       `json:"failed_fetches"`
	Results       []searchResult            `json:"results"`
}

// Search handles POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categories, err := entities.ParseCategories(req.Categories)
	if err != nil {
		respondWithAppError(w, apperrors.NewValidationError(err.Error()))
		return
	}
	view, err := entities.ParseViewState(req.Category, req.Sort)
	if err != nil {
		respondWithAppError(w, apperrors.NewValidationError(err.Error()))
		return
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 0 || page > maxPage {
		respondWithError(w, http.StatusBadRequest, "page must be between 1 and "+strconv.Itoa(maxPage))
		return
	}

	session, _ := h.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, session.ID())

	// Loading more pages re-runs the search with a larger limit
	query := entities.NewSearchQuery(req.Query, categories, h.pageSize*page).WithUser(req.UserID)

	start := time.Now()
	rs, generation, err := session.Search(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStaleSearch):
			respondWithError(w, http.StatusConflict, "search superseded")
		case errors.Is(err, context.Canceled):
			observability.LoggerFromContext(r.Context()).Debug().Str("session", session.ID()).Msg("Search cancelled by client")
			respondWithError(w, http.StatusServiceUnavailable, "search cancelled")
		default:
			respondWithAppError(w, err)
		}
		return
	}
	// only a completed search moves the session to the requested view
	session.SetView(view)

	if h.tracker != nil && !query.IsEmpty() {
		h.tracker.TrackSearch(r.Context(), services.NewSearchEvent(rs, session.ID(), time.Since(start)))
	}

	respondWithJSON(w, http.StatusOK, buildSearchResponse(session.ID(), generation, page, rs, view))
}

// View handles GET /api/search/view; it re-projects the session's results without searching
func (h *SearchHandler) View(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Get(r.Header.Get(SessionHeader))
	if !ok {
		respondWithError(w, http.StatusNotFound, "search session not found")
		return
	}
	w.Header().Set(SessionHeader, session.ID())

	params := r.URL.Query()
	view, err := entities.ParseViewState(params.Get("category"), params.Get("sort"))
	if err != nil {
		respondWithAppError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	rs, ok := session.Results()
	if !ok {
		respondWithError(w, http.StatusNotFound, "no search results")
		return
	}
	session.SetView(view)

	page := rs.Query.Limit / h.pageSize
	if page < 1 {
		page = 1
	}
	respondWithJSON(w, http.StatusOK, buildSearchResponse(session.ID(), session.Generation(), page, rs, view))
}

// Suggest handles GET /api/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.suggester.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// ZeroResultQueries handles GET /api/search/zero-results
func (h *SearchHandler) ZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		respondWithError(w, http.StatusNotFound, "search analytics is not enabled")
		return
	}

	limit := defaultZeroResultsMax
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxZeroResults)
	}

	events, err := h.tracker.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Failed to list zero-result queries")
		respondWithError(w, http.StatusInternalServerError, "failed to list zero-result queries")
		return
	}
	if events == nil {
		events = []*entities.SearchEvent{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": events,
		"count":   len(events),
	})
}

func buildSearchResponse(sessionID string, generation uint64, page int, rs *entities.ResultSet, view entities.ViewState) searchResponse {
	projected := services.Project(rs, view)
	results := make([]searchResult, 0, len(projected))
	for _, r := range projected {
		results = append(results, toSearchResult(r))
	}
	return searchResponse{
		SessionID:     sessionID,
		Query:         rs.Query.Text,
		Generation:    generation,
		Page:          page,
		View:          view,
		Counts:        rs.Counts(),
		Total:         rs.Total(),
		FailedFetches: rs.FailedFetches,
		Results:       results,
	}
}

func toSearchResult(r entities.EnrichedResult) searchResult {
	out := searchResult{
		ID:        r.ID,
		Category:  r.Category,
		Relevance: r.Relevance,
		Reason:    r.Reason,
		Record:    r.Record,
	}
	if r.Record == nil {
		return out
	}
	out.Name = r.Record.DisplayName()
	out.Summary = r.Record.Summary()
	if price, ok := r.Record.Price(); ok {
		out.Price = &price
	}
	if ts, ok := r.Record.Timestamp(); ok {
		out.Date = &ts
	}
	return out
}
