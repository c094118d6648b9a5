package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestRunInTxCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock = stock - $1")).
		WithArgs(2, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		ok, err := tx.DecrementStock(context.Background(), 7, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock = stock - $1")).
		WithArgs(5, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		ok, err := tx.DecrementStock(context.Background(), 7, 5)
		require.NoError(t, err)
		if !ok {
			return apperr.Conflict(apperr.ErrInsufficientStock)
		}
		return nil
	})

	assert.True(t, errors.Is(err, apperr.ErrInsufficientStock))
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxBeginFailureIsTransient(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}

func TestRedeemCouponGuard(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET used_count = used_count + 1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		ok, err := tx.RedeemCoupon(context.Background(), 3)
		require.NoError(t, err)
		if !ok {
			return apperr.Conflict(apperr.ErrCouponExhausted)
		}
		return nil
	})

	assert.True(t, errors.Is(err, apperr.ErrCouponExhausted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetProductByID(context.Background(), 99)
	assert.True(t, apperr.IsNotFound(err))
	assert.EqualError(t, err, "product not found")
}

func TestCreateCouponDuplicateCode(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO coupons")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "coupons_code_key"})

	c := &models.Coupon{Code: " hemat10 ", DiscountType: models.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)}
	err := store.CreateCoupon(context.Background(), c)

	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "HEMAT10", c.Code)
}

func TestGetOrderByIdempotencyKeyAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE idempotency_key = $1")).
		WithArgs("key-1").
		WillReturnError(sql.ErrNoRows)

	order, err := store.GetOrderByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestGetOrderByID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "order_number", "customer_id", "table_id", "order_type", "customer_name", "status",
		"original_amount", "discount_amount", "total_amount", "coupon_id", "coupon_code", "payment_method",
		"payment_verified", "notes", "idempotency_key", "completed_at", "created_at", "updated_at",
	}).AddRow(
		1, "ORD-20240101120000-0001", nil, 4, "dine-in", "Budi", "pending",
		"200000.00", "20000.00", "180000.00", 2, "HEMAT10", "qris",
		false, "", nil, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).WithArgs(int64(1)).WillReturnRows(rows)

	order, err := store.GetOrderByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240101120000-0001", order.OrderNumber)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(180000)))
	require.NotNil(t, order.TableID)
	assert.Equal(t, int64(4), *order.TableID)
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "HEMAT10", *order.CouponCode)
	assert.Nil(t, order.CompletedAt)
}

func TestListOrdersBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND status = $1 AND order_type = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("cooking", "takeaway", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	orders, err := store.ListOrders(context.Background(), OrderFilter{Status: "cooking", OrderType: "takeaway", Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEventProcessed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processed_events")).
		WithArgs("cb-1", "payment_callback").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processed_events")).
		WithArgs("cb-1", "payment_callback").
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := store.MarkEventProcessed(context.Background(), "cb-1", "payment_callback")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkEventProcessed(context.Background(), "cb-1", "payment_callback")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestDeleteTableMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dining_tables SET status = 'deleted'")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteTable(context.Background(), 5)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAdjustStock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
		WithArgs(-3, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(7))

	stock, err := store.AdjustStock(context.Background(), 2, -3)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestMapErrorClassifiesDriverErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind apperr.Kind
	}{
		"no rows":         {sql.ErrNoRows, apperr.KindNotFound},
		"unique":          {&pq.Error{Code: "23505"}, apperr.KindConflict},
		"foreign key":     {&pq.Error{Code: "23503"}, apperr.KindNotFound},
		"check":           {&pq.Error{Code: "23514"}, apperr.KindValidation},
		"value too long":  {&pq.Error{Code: "22001", Message: "value too long for type character varying(64)"}, apperr.KindValidation},
		"numeric range":   {&pq.Error{Code: "22003", Message: "integer out of range"}, apperr.KindValidation},
		"connection lost": {&pq.Error{Code: "08006"}, apperr.KindTransient},
		"plain":           {errors.New("boom"), apperr.KindTransient},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.kind, apperr.KindOf(mapError(tc.err, "order")))
		})
	}
}

func TestCreateOrderKeyTooLongIsValidation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "22001", Message: "value too long for type character varying(64)"})
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		return tx.CreateOrder(context.Background(), &models.Order{OrderNumber: "ORD-1"})
	})

	assert.True(t, apperr.IsValidation(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomerInsideTx(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE id = $1 FOR SHARE")).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(tx *Tx) error {
		_, err := tx.GetCustomerByID(context.Background(), 404)
		return err
	})

	assert.True(t, apperr.IsNotFound(err))
	assert.EqualError(t, err, "customer not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevenueSince(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE payment_verified AND status <> 'cancelled' AND created_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"revenue", "orders"}).AddRow("125000.00", 3))

	sum, err := store.Revenue(context.Background(), &since)
	require.NoError(t, err)
	assert.True(t, sum.Revenue.Equal(decimal.NewFromInt(125000)))
	assert.Equal(t, 3, sum.Orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	email := "sari@example.com"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "customers_email_key"})

	err := store.CreateCustomer(context.Background(), &models.Customer{Name: "Sari", Email: &email})
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCustomerMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customers WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.True(t, apperr.IsNotFound(store.DeleteCustomer(context.Background(), 9)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStaffUserByUsernameLowercases(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_users WHERE username = $1")).
		WithArgs("kasir").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "email", "password_hash", "role", "is_active", "created_at"}).
			AddRow(3, "kasir", "Kasir Satu", nil, "$2a$10$hash", "cashier", true, now))

	u, err := store.GetStaffUserByUsername(context.Background(), "  Kasir ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
	assert.True(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStaffUserByUsernameUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_users WHERE username = $1")).
		WithArgs("tamu").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetStaffUserByUsername(context.Background(), "tamu")
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
