package providers

import (
	"context"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to catalog events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.EntityEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.EntityEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelCatalogUpdates carries changes to any catalog entity
const EventChannelCatalogUpdates = "catalog:updates"

// EventChannelCategoryPrefix is the prefix for per-category channels
const EventChannelCategoryPrefix = "catalog:"

// GetCategoryChannel returns the channel name for one category
func GetCategoryChannel(c entities.Category) string {
	return EventChannelCategoryPrefix + c.Plural()
}
