package providers

import (
	"context"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// SearchIndex is the write side of the search index behind a relevance source
type SearchIndex interface {
	// EnsureCollections creates any missing per-category collections
	EnsureCollections(ctx context.Context, categories []entities.Category) error

	// ResetCollections drops the per-category collections
	ResetCollections(ctx context.Context, categories []entities.Category) error

	// Upsert indexes one record
	Upsert(ctx context.Context, record entities.Record) error

	// Delete removes one record from the index
	Delete(ctx context.Context, category entities.Category, id string) error
}
