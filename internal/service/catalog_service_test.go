package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCatalog(t *testing.T) (*CatalogService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogService(store.New(sqlx.NewDb(db, "postgres"))), mock
}

func productRow(id int64, stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "sku", "price", "stock", "category_id", "brand_id", "description", "image_url",
		"status", "created_at", "updated_at",
	}).AddRow(id, "Nasi Goreng", "NG-01", "25000.00", stock, nil, nil, "", "", "active", now, now)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newMockCatalog(t)

	tests := []struct {
		name    string
		product models.Product
	}{
		{"missing name", models.Product{SKU: "A", Price: dec(1)}},
		{"missing sku", models.Product{Name: "A", Price: dec(1)}},
		{"zero price", models.Product{Name: "A", SKU: "A"}},
		{"negative stock", models.Product{Name: "A", SKU: "A", Price: dec(1), Stock: -1}},
		{"bad status", models.Product{Name: "A", SKU: "A", Price: dec(1), Status: "sold"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product
			err := svc.CreateProduct(context.Background(), &p)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateProductDefaultsToActive(t *testing.T) {
	svc, mock := newMockCatalog(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("Es Teh", "ET-01", dec(5000), 10, nil, nil, "", "", models.ProductStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))

	p := &models.Product{Name: "Es Teh", SKU: "ET-01", Price: dec(5000), Stock: 10}
	require.NoError(t, svc.CreateProduct(context.Background(), p))
	assert.Equal(t, int64(9), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockBelowZeroIsConflict(t *testing.T) {
	svc, mock := newMockCatalog(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
		WithArgs(-10, int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(productRow(1, 3))

	_, err := svc.AdjustStock(context.Background(), 1, -10)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockMissingProduct(t *testing.T) {
	svc, mock := newMockCatalog(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
		WithArgs(5, int64(404)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.AdjustStock(context.Background(), 404, 5)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListProductsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newMockCatalog(t)
	_, err := svc.ListProducts(context.Background(), store.ProductFilter{Status: "sold"})
	assert.True(t, apperr.IsValidation(err))
}

func TestListProductsHidesDeleted(t *testing.T) {
	svc, mock := newMockCatalog(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'deleted' AND category_id = $1 ORDER BY id DESC")).
		WithArgs(int64(2)).
		WillReturnRows(productRow(1, 3))

	products, err := svc.ListProducts(context.Background(), store.ProductFilter{CategoryID: 2})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Price.Equal(dec(25000)))
}

func TestCategoryAndBrandValidation(t *testing.T) {
	svc, _ := newMockCatalog(t)
	ctx := context.Background()

	assert.True(t, apperr.IsValidation(svc.CreateCategory(ctx, &models.Category{Name: " "})))
	assert.True(t, apperr.IsValidation(svc.UpdateCategory(ctx, &models.Category{ID: 3, Name: "Drinks", ParentID: int64Ptr(3)})))
	assert.True(t, apperr.IsValidation(svc.CreateBrand(ctx, &models.Brand{})))
	assert.True(t, apperr.IsValidation(svc.UpdateBrand(ctx, &models.Brand{ID: 1})))
}

func TestDeleteProductIsSoft(t *testing.T) {
	svc, mock := newMockCatalog(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET status = 'deleted'")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteProduct(context.Background(), 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}
