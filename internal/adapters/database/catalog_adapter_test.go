package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/brakebee-search/internal/domain/entities"
	"github.com/zatekoja/brakebee-search/internal/domain/repositories"
	"github.com/zatekoja/brakebee-search/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/brakebee-search/pkg/errors"
)

func setupCatalogAdapter(t *testing.T) (repositories.CatalogRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogAdapter(postgres.NewClientFromDB(db), nil), mock
}

func TestCatalogAdapter_GetByIDs(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`SELECT row_to_json\(t\) FROM \(SELECT "id", "name".* FROM "products" WHERE \(\("status" = 'active'\) AND \("id" IN \('7', '8'\)\)\)\) AS "t"`).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id": 7, "name": "Raku Bowl", "price": 45.00, "created_at": "2024-02-01T10:00:00.123456"}`)))

	found, err := adapter.GetByIDs(context.Background(), entities.CategoryProduct, []string{"7", "8"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Raku Bowl", found["7"].DisplayName())
	_, ok := found["7"].Timestamp()
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdapter_ProfilesFilterByUserType(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`FROM "users" WHERE \(\("user_type" = 'promoter'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id": 3, "business_name": "Fair Days LLC"}`)))

	found, err := adapter.GetByIDs(context.Background(), entities.CategoryPromoter, []string{"3"})
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryPromoter, found["3"].Category())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdapter_GetByIDsEmpty(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	found, err := adapter.GetByIDs(context.Background(), entities.CategoryEvent, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdapter_QueryErrorIsExternal(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`FROM "events"`).WillReturnError(errors.New("connection reset"))

	_, err := adapter.GetByIDs(context.Background(), entities.CategoryEvent, []string{"1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestCatalogAdapter_ListPages(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`FROM "events" ORDER BY "id" ASC LIMIT 2 OFFSET 4\) AS "t"`).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id": 5, "title": "Spring Fair"}`)).
			AddRow([]byte(`{"id": 6, "title": "Winter Market"}`)))

	records, err := adapter.List(context.Background(), entities.CategoryEvent, 2, 4)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Winter Market", records[1].DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdapter_UnknownCategory(t *testing.T) {
	adapter, _ := setupCatalogAdapter(t)

	_, err := adapter.List(context.Background(), entities.Category("vendor"), 10, 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestCatalogAdapter_SkipsUndecodableRow(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`FROM "products" WHERE .*"id" IN \('7', '8', '9'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id": 7, "name": "Raku Bowl", "price": 10}`)).
			AddRow([]byte(`{"id": 8, "name": "Glaze Set", "price": "N/A"}`)).
			AddRow([]byte(`{"id": 9, "name": "Kiln Shelf", "price": "5.00"}`)))

	found, err := adapter.GetByIDs(context.Background(), entities.CategoryProduct, []string{"7", "8", "9"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "7")
	assert.Contains(t, found, "9")
	assert.NotContains(t, found, "8")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdapter_DropsNonIntegerIDs(t *testing.T) {
	adapter, mock := setupCatalogAdapter(t)

	mock.ExpectQuery(`FROM "events" WHERE \("id" IN \('4'\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id": 4, "title": "Spring Fair"}`)))

	found, err := adapter.GetByIDs(context.Background(), entities.CategoryEvent, []string{"abc", "4", "5; drop"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.NoError(t, mock.ExpectationsWereMet())

	found, err = adapter.GetByIDs(context.Background(), entities.CategoryEvent, []string{"abc"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
