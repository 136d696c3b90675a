package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
)

func TestSearchAnalyticsAdapter_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	adapter := NewSearchAnalyticsAdapter(postgres.NewClientFromDB(db))

	mock.ExpectExec(`INSERT INTO "search_analytics" \("categories", "created_at", "failed_fetches", "id", "latency_ms", "query", "result_count", "session_id", "user_id"\) VALUES \('\{"products","events"\}'`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &entities.SearchEvent{
		Query:       "raku",
		Categories:  []string{"products", "events"},
		ResultCount: 4,
		LatencyMs:   120,
		SessionID:   "s-1",
	}
	require.NoError(t, adapter.LogEvent(context.Background(), event))

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchAnalyticsAdapter_LogEventFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	adapter := NewSearchAnalyticsAdapter(postgres.NewClientFromDB(db))

	mock.ExpectExec(`INSERT INTO "search_analytics"`).WillReturnError(errors.New("disk full"))

	err = adapter.LogEvent(context.Background(), &entities.SearchEvent{Query: "raku"})
	assert.ErrorContains(t, err, "failed to log search event")
}

func TestSearchAnalyticsAdapter_GetZeroResultQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	adapter := NewSearchAnalyticsAdapter(postgres.NewClientFromDB(db))

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM "search_analytics" WHERE \("result_count" = 0\) ORDER BY "created_at" DESC LIMIT 5`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "query", "categories", "result_count", "failed_fetches",
			"latency_ms", "user_id", "session_id", "created_at",
		}).AddRow("e-1", "glass beads", "{products,artists}", 0, 1, 88, nil, "s-9", created))

	events, err := adapter.GetZeroResultQueries(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "glass beads", events[0].Query)
	assert.Equal(t, []string{"products", "artists"}, events[0].Categories)
	assert.Equal(t, "", events[0].UserID)
	assert.Equal(t, "s-9", events[0].SessionID)
	assert.Equal(t, created, events[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
