package search

import (
	"context"
	"fmt"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/providers"
	tsclient "github.com/zatekoja/brakebee-search/internal/infrastructure/clients/typesense"
)

// TypesenseIndexer writes catalog records into the per-category collections
type TypesenseIndexer struct {
	client *tsclient.Client
}

// Ensure TypesenseIndexer implements SearchIndex
var _ providers.SearchIndex = (*TypesenseIndexer)(nil)

// NewTypesenseIndexer creates a new Typesense indexer
func NewTypesenseIndexer(client *tsclient.Client) *TypesenseIndexer {
	return &TypesenseIndexer{client: client}
}

func (a *TypesenseIndexer) EnsureCollections(ctx context.Context, categories []entities.Category) error {
	return a.client.InitCollections(ctx, categories)
}

func (a *TypesenseIndexer) ResetCollections(ctx context.Context, categories []entities.Category) error {
	return a.client.DropCollections(ctx, categories)
}

// Upsert indexes a record
func (a *TypesenseIndexer) Upsert(ctx context.Context, record entities.Record) error {
	collection := tsclient.CollectionName(record.Category())
	_, err := a.client.Client().Collection(collection).Documents().Upsert(ctx, Document(record))
	if err != nil {
		return fmt.Errorf("failed to index %s %s: %w", record.Category(), record.RecordID(), err)
	}
	return nil
}

// Delete removes a record from the index
func (a *TypesenseIndexer) Delete(ctx context.Context, category entities.Category, id string) error {
	_, err := a.client.Client().Collection(tsclient.CollectionName(category)).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s from index: %w", category, id, err)
	}
	return nil
}

// Document is the indexed projection of a record. Undated records get
// sort_at 0 so they rank after dated ones.
func Document(record entities.Record) map[string]interface{} {
	doc := map[string]interface{}{
		"id":       record.RecordID(),
		"name":     record.DisplayName(),
		"category": string(record.Category()),
		"sort_at":  int64(0),
	}
	if summary := record.Summary(); summary != "" {
		doc["summary"] = summary
	}
	if price, ok := record.Price(); ok {
		doc["price"] = price
	}
	if ts, ok := record.Timestamp(); ok {
		doc["sort_at"] = ts.Unix()
	}
	return doc
}
