package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

const searchAnalyticsTable = "search_analytics"

type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":             event.ID,
		"query":          event.Query,
		"categories":     pq.Array(event.Categories),
		"result_count":   event.ResultCount,
		"failed_fetches": event.FailedFetches,
		"latency_ms":     event.LatencyMs,
		"user_id":        sql.NullString{String: event.UserID, Valid: event.UserID != ""},
		"session_id":     sql.NullString{String: event.SessionID, Valid: event.SessionID != ""},
		"created_at":     event.CreatedAt,
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}

	return nil
}

func (a *SearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.From(searchAnalyticsTable).
		Select(
			"id", "query", "categories", "result_count", "failed_fetches",
			"latency_ms", "user_id", "session_id", "created_at",
		).
		Where(goqu.Ex{"result_count": 0}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}
	defer rows.Close()

	var events []*entities.SearchEvent
	for rows.Next() {
		e := &entities.SearchEvent{}
		var userID, sessionID sql.NullString
		err := rows.Scan(
			&e.ID,
			&e.Query,
			pq.Array(&e.Categories),
			&e.ResultCount,
			&e.FailedFetches,
			&e.LatencyMs,
			&userID,
			&sessionID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		e.UserID = userID.String
		e.SessionID = sessionID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read search events", err)
	}

	return events, nil
}
