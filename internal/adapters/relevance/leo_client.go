package relevance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
)

// maxResponseBytes bounds the ranking service response
const maxResponseBytes = 4 << 20

// ErrMalformedResponse is returned when the ranking payload cannot be used
var ErrMalformedResponse = errors.New("malformed relevance response")

// LeoConfig configures the ranking service client
type LeoConfig struct {
	URL             string
	BreakerFailures int
	BreakerCooldown time.Duration
}

// LeoClient queries the AI ranking service over HTTP behind a circuit breaker.
type LeoClient struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type leoRequest struct {
	Query   string     `json:"query"`
	UserID  string     `json:"userId,omitempty"`
	Options leoOptions `json:"options"`
}

type leoOptions struct {
	Limit      int      `json:"limit"`
	Categories []string `json:"categories"`
}

type leoResponse struct {
	Results map[string]json.RawMessage `json:"results"`
}

type leoHit struct {
	ID        entities.FlexID `json:"id"`
	Relevance float64         `json:"relevance"`
	Reason    string          `json:"reason"`
}

// NewLeoClient creates a ranking client. Deadlines come from the caller's context.
func NewLeoClient(cfg LeoConfig, httpClient *http.Client) *LeoClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relevance",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
		// A superseded search cancels its own request; that says nothing about the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &LeoClient{
		endpoint:   cfg.URL,
		httpClient: httpClient,
		breaker:    breaker,
	}
}

var _ providers.RelevanceSource = (*LeoClient)(nil)

// Rank implements providers.RelevanceSource
func (c *LeoClient) Rank(ctx context.Context, query entities.SearchQuery) ([]entities.RelevanceHit, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.rank(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]entities.RelevanceHit), nil
}

// State reports the circuit breaker state
func (c *LeoClient) State() gobreaker.State {
	return c.breaker.State()
}

func (c *LeoClient) rank(ctx context.Context, query entities.SearchQuery) ([]entities.RelevanceHit, error) {
	requested := query.RequestedCategories()
	categories := make([]string, 0, len(requested))
	for _, cat := range requested {
		categories = append(categories, cat.Plural())
	}

	body, err := json.Marshal(leoRequest{
		Query:  query.Text,
		UserID: query.UserID,
		Options: leoOptions{
			Limit:      query.Limit,
			Categories: categories,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode relevance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build relevance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relevance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relevance service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read relevance response: %w", err)
	}
	return decodeHits(data)
}

// decodeHits flattens the per-category result lists in precedence order.
// Plural and singular keys are accepted; unknown keys are ignored.
func decodeHits(data []byte) ([]entities.RelevanceHit, error) {
	var payload leoResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}

	byCategory := make(map[entities.Category][]leoHit)
	for key, raw := range payload.Results {
		category, err := entities.ParseCategory(key)
		if err != nil {
			log.Debug().Str("key", key).Msg("Ignoring unknown relevance category")
			continue
		}
		var hits []leoHit
		if err := json.Unmarshal(raw, &hits); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, key, err)
		}
		byCategory[category] = append(byCategory[category], hits...)
	}

	var out []entities.RelevanceHit
	for _, category := range entities.AllCategories() {
		for _, h := range byCategory[category] {
			if h.ID == "" {
				return nil, fmt.Errorf("%w: %s hit without id", ErrMalformedResponse, category)
			}
			out = append(out, entities.RelevanceHit{
				ID:        string(h.ID),
				Relevance: h.Relevance,
				Category:  category,
				Reason:    h.Reason,
			})
		}
	}
	return out, nil
}
