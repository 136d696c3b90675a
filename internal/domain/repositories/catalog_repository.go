package repositories

import (
	"context"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// CatalogRepository reads marketplace records from a catalog replica.
// It is read-only; the marketplace owns writes.
type CatalogRepository interface {
	// GetByIDs returns the records found for ids, keyed by id. Missing ids are absent.
	GetByIDs(ctx context.Context, category entities.Category, ids []string) (map[string]entities.Record, error)

	// List returns one page of records ordered by id
	List(ctx context.Context, category entities.Category, limit, offset int) ([]entities.Record, error)
}
