package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

// catalogTable describes where one category lives in the catalog replica
type catalogTable struct {
	name    string
	columns []interface{}
	filter  goqu.Ex
}

var catalogTables = map[entities.Category]catalogTable{
	entities.CategoryProduct: {
		name: "products",
		columns: []interface{}{
			"id", "name", "short_description", "description", "price",
			"image_url", "vendor_id", "status", "created_at",
		},
		filter: goqu.Ex{"status": "active"},
	},
	entities.CategoryArtist: {
		name:    "users",
		columns: profileColumns,
		filter:  goqu.Ex{"user_type": "artist"},
	},
	entities.CategoryPromoter: {
		name:    "users",
		columns: profileColumns,
		filter:  goqu.Ex{"user_type": "promoter"},
	},
	entities.CategoryArticle: {
		name: "articles",
		columns: []interface{}{
			"id", "title", "slug", "excerpt", "content",
			"author_display_name", "published_at", "created_at",
		},
		filter: goqu.Ex{"status": "published"},
	},
	entities.CategoryEvent: {
		name: "events",
		columns: []interface{}{
			"id", "title", "short_description", "description", "venue_name",
			"venue_city", "venue_state", "start_date", "end_date", "created_at",
		},
	},
}

var profileColumns = []interface{}{
	"id", "username", "business_name", "display_name", "first_name",
	"last_name", "bio", "profile_image_path", "created_at",
}

// CatalogAdapter reads marketplace records from a PostgreSQL catalog replica.
// Rows are serialised with row_to_json and decoded like API responses.
type CatalogAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewCatalogAdapter creates a new catalog adapter
func NewCatalogAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.CatalogRepository {
	return &CatalogAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// GetByIDs retrieves the records found for ids. Ids that cannot be a
// catalog key and rows that fail to decode are left out of the result.
func (a *CatalogAdapter) GetByIDs(ctx context.Context, category entities.Category, ids []string) (map[string]entities.Record, error) {
	table, err := tableFor(category)
	if err != nil {
		return nil, err
	}
	ids = integerIDs(ids)
	if len(ids) == 0 {
		return map[string]entities.Record{}, nil
	}

	inner := table.selectFrom(a.db, goqu.Ex{"id": ids})

	records, err := a.queryRecords(ctx, "catalog.get_by_ids", category, inner)
	if err != nil {
		return nil, err
	}

	out := make(map[string]entities.Record, len(records))
	for _, rec := range records {
		out[rec.RecordID()] = rec
	}
	return out, nil
}

// List returns one page of records ordered by id
func (a *CatalogAdapter) List(ctx context.Context, category entities.Category, limit, offset int) ([]entities.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	table, err := tableFor(category)
	if err != nil {
		return nil, err
	}

	inner := table.selectFrom(a.db).
		Order(goqu.I("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset))

	return a.queryRecords(ctx, "catalog.list", category, inner)
}

func (a *CatalogAdapter) queryRecords(ctx context.Context, operation string, category entities.Category, inner *goqu.SelectDataset) ([]entities.Record, error) {
	query, args, err := a.db.From(inner.As("t")).
		Select(goqu.L("row_to_json(t)")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build catalog query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("failed to query %s catalog", category), err)
	}
	defer rows.Close()

	var records []entities.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, apperrors.NewInternalError("failed to scan catalog row", err)
		}
		rec, err := entities.DecodeRecord(category, doc)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("category", string(category)).
				Str("operation", operation).
				Msg("Skipping undecodable catalog row")
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("failed to read %s catalog", category), err)
	}
	return records, nil
}

// integerIDs keeps the ids that can match an integer primary key. One
// malformed id would otherwise fail the cast for the whole IN list.
func integerIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func tableFor(category entities.Category) (catalogTable, error) {
	table, ok := catalogTables[category]
	if !ok {
		return catalogTable{}, apperrors.NewValidationError(fmt.Sprintf("unknown category %q", category))
	}
	return table, nil
}

func (t catalogTable) selectFrom(db *goqu.Database, extra ...goqu.Ex) *goqu.SelectDataset {
	ds := db.From(t.name).Select(t.columns...)
	var conds []exp.Expression
	if len(t.filter) > 0 {
		conds = append(conds, t.filter)
	}
	for _, e := range extra {
		conds = append(conds, e)
	}
	if len(conds) > 0 {
		ds = ds.Where(conds...)
	}
	return ds
}
