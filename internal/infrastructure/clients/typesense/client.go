package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/pkg/config"
	"github.com/zatekoja/brakebee-search/pkg/retry"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.Do(context.Background(), retry.DefaultConfig(), "Typesense",
		func(ctx context.Context) error {
			healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, err := client.Health(healthCtx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return &Client{client: client}, nil
}

// Wrap adopts an already configured typesense client
func Wrap(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// CollectionName is the index collection holding one category
func CollectionName(category entities.Category) string {
	return category.Plural()
}

// CollectionSchema describes the searchable projection of a record
func CollectionSchema(category entities.Category) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CollectionName(category),
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "summary", Type: "string", Optional: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "price", Type: "float", Optional: pointer.True()},
			{Name: "sort_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("sort_at"),
	}
}

// InitCollections creates any missing category collections
func (c *Client) InitCollections(ctx context.Context, categories []entities.Category) error {
	existing, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, col := range existing {
		have[col.Name] = true
	}

	for _, category := range categories {
		name := CollectionName(category)
		if have[name] {
			log.Debug().Str("collection", name).Msg("Typesense collection already exists")
			continue
		}
		if _, err := c.client.Collections().Create(ctx, CollectionSchema(category)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		log.Info().Str("collection", name).Msg("Created Typesense collection")
	}
	return nil
}

// DropCollections deletes the category collections, ignoring missing ones
func (c *Client) DropCollections(ctx context.Context, categories []entities.Category) error {
	existing, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, col := range existing {
		have[col.Name] = true
	}

	for _, category := range categories {
		name := CollectionName(category)
		if !have[name] {
			continue
		}
		if _, err := c.client.Collection(name).Delete(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		log.Info().Str("collection", name).Msg("Dropped Typesense collection")
	}
	return nil
}
