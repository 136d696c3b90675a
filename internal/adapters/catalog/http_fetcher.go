package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

// maxRecordBytes bounds a single entity response body
const maxRecordBytes = 1 << 20

// recordPaths maps each category to its marketplace REST path
var recordPaths = map[entities.Category]string{
	entities.CategoryProduct:  "/products/%s",
	entities.CategoryArtist:   "/users/profile/by-id/%s",
	entities.CategoryPromoter: "/users/profile/by-id/%s",
	entities.CategoryArticle:  "/articles/by-id/%s",
	entities.CategoryEvent:    "/events/%s",
}

// HTTPFetcher loads records of one category from the marketplace REST API
type HTTPFetcher struct {
	baseURL    string
	category   entities.Category
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher for category. A nil client gets a 10s timeout.
func NewHTTPFetcher(baseURL string, category entities.Category, httpClient *http.Client) (*HTTPFetcher, error) {
	if _, ok := recordPaths[category]; !ok {
		return nil, fmt.Errorf("no catalog endpoint for category %q", category)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		category:   category,
		httpClient: httpClient,
	}, nil
}

// NewHTTPRegistry registers an HTTP fetcher for every category
func NewHTTPRegistry(baseURL string, httpClient *http.Client) providers.FetcherRegistry {
	registry := make(providers.FetcherRegistry, len(recordPaths))
	for _, c := range entities.AllCategories() {
		f, err := NewHTTPFetcher(baseURL, c, httpClient)
		if err != nil {
			continue
		}
		registry[c] = f
	}
	return registry
}

// FetchByID implements providers.EntityFetcher
func (f *HTTPFetcher) FetchByID(ctx context.Context, id string) (entities.Record, error) {
	data, err := f.FetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := entities.DecodeRecord(f.category, data)
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("malformed %s %s", f.category, id), err)
	}
	return rec, nil
}

// FetchRaw returns the undecoded response body
func (f *HTTPFetcher) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	endpoint := f.baseURL + fmt.Sprintf(recordPaths[f.category], url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build catalog request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("fetch %s %s", f.category, id), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", f.category, id))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("fetch %s %s", f.category, id),
			fmt.Errorf("catalog api returned status %d", resp.StatusCode),
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes))
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("read %s %s", f.category, id), err)
	}
	return data, nil
}
