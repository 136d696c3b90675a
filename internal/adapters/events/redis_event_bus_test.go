package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent(`{"id":"e-1","category":"event","entity_id":"42","type":"deleted","timestamp":"2024-05-01T12:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryEvent, event.Category)
	assert.Equal(t, "42", event.EntityID)
	assert.Equal(t, entities.EntityEventDeleted, event.Type)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := decodeEvent(`not json`)
	assert.Error(t, err)

	_, err = decodeEvent(`{"id":"e-1","category":"vendor","entity_id":"1","type":"updated"}`)
	assert.Error(t, err)
}

func TestBroadcast_SkipsFullSubscribers(t *testing.T) {
	bus := &RedisEventBus{
		subscribers: map[string]map[chan *entities.EntityEvent]struct{}{},
	}
	full := make(chan *entities.EntityEvent)
	open := make(chan *entities.EntityEvent, 1)
	bus.subscribers["catalog:updates"] = map[chan *entities.EntityEvent]struct{}{full: {}, open: {}}

	event := entities.NewEntityEvent(entities.CategoryProduct, "7", entities.EntityEventUpdated)
	bus.broadcast("catalog:updates", event)

	assert.Same(t, event, <-open)
	assert.Len(t, full, 0)
}
