package entities

import (
	"time"

	"github.com/google/uuid"
)

// EntityEventType represents the kind of catalog change
type EntityEventType string

const (
	EntityEventUpdated EntityEventType = "updated"
	EntityEventDeleted EntityEventType = "deleted"
)

// EntityEvent announces that a catalog record changed upstream
type EntityEvent struct {
	ID        string          `json:"id"`
	Category  Category        `json:"category"`
	EntityID  string          `json:"entity_id"`
	Type      EntityEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEntityEvent creates a new entity event
func NewEntityEvent(category Category, entityID string, eventType EntityEventType) *EntityEvent {
	return &EntityEvent{
		ID:        uuid.NewString(),
		Category:  category,
		EntityID:  entityID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
