package store

import (
	"context"
	"strconv"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
)

const orderColumns = `id, order_number, customer_id, table_id, order_type, customer_name, status,
	original_amount, discount_amount, total_amount, coupon_id, coupon_code, payment_method,
	payment_verified, notes, idempotency_key, completed_at, created_at, updated_at`

// OrderFilter narrows ListOrders; zero values mean no filter
type OrderFilter struct {
	Status    string
	OrderType string
	Limit     int
}

// CreateOrder inserts the order header inside the order transaction
func (t *Tx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, customer_id, table_id, order_type, customer_name, status,
		                    original_amount, discount_amount, total_amount, coupon_id, coupon_code,
		                    payment_method, notes, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.CustomerID, order.TableID, order.OrderType, order.CustomerName, order.Status,
		order.OriginalAmount, order.DiscountAmount, order.TotalAmount, order.CouponID, order.CouponCode,
		order.PaymentMethod, order.Notes, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	return mapError(err, "order")
}

// CreateOrderItem inserts one immutable order line
func (t *Tx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Subtotal)
	return mapError(err, "order item")
}

// GetOrderForUpdate row-locks an order for a status transition
func (t *Tx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// UpdateOrderStatus writes status and, when given, payment_verified. It
// stamps completed_at the first time an order completes.
func (t *Tx) UpdateOrderStatus(ctx context.Context, id int64, status string, paymentVerified *bool) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $1,
		    payment_verified = COALESCE($2, payment_verified),
		    completed_at = CASE WHEN $3 THEN COALESCE(completed_at, NOW()) ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $4
		RETURNING ` + orderColumns

	var order models.Order
	if err := t.tx.GetContext(ctx, &order, query,
		status, paymentVerified, status == models.OrderStatusCompleted, id); err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// GetTableByID reads a table inside the order transaction
func (t *Tx) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	var table models.Table
	if err := t.tx.GetContext(ctx, &table, "SELECT "+tableColumns+" FROM dining_tables WHERE id = $1", id); err != nil {
		return nil, mapError(err, "table")
	}
	return &table, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id); err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key; nil if absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if err != nil {
		err = mapError(err, "order")
		if apperr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves orders, newest first
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE 1=1"
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.OrderType != "" {
		args = append(args, f.OrderType)
		query += " AND order_type = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, mapError(err, "order")
	}
	return orders, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT id, order_id, product_id, product_name, quantity, price, subtotal FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID)
	if err != nil {
		return nil, mapError(err, "order item")
	}
	return items, nil
}

// DeleteOrder removes an order; items and payments cascade
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	return s.execOne(ctx, "order", "DELETE FROM orders WHERE id = $1", id)
}

// IsEventProcessed checks if an event was already handled
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	if err != nil {
		return false, mapError(err, "processed event")
	}
	return exists, nil
}

// MarkEventProcessed records an event; it reports false if it was already recorded
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, mapError(err, "processed event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "processed event")
	}
	return n == 1, nil
}
