package store

import (
	"context"
	"time"

	"pos-service/internal/models"
)

// revenueWhere selects orders that count as sales
const revenueWhere = `payment_verified AND status <> 'cancelled'`

// Revenue sums verified sales created at or after since; a nil since covers
// all time.
func (s *Store) Revenue(ctx context.Context, since *time.Time) (models.RevenueSummary, error) {
	query := `SELECT COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS orders FROM orders WHERE ` + revenueWhere
	args := []interface{}{}
	if since != nil {
		query += " AND created_at >= $1"
		args = append(args, *since)
	}

	var sum models.RevenueSummary
	if err := s.db.GetContext(ctx, &sum, query, args...); err != nil {
		return models.RevenueSummary{}, mapError(err, "revenue")
	}
	return sum, nil
}

// CustomerActivity counts figures that are not revenue
type CustomerActivity struct {
	NewCustomers       int `db:"new_customers"`
	ReturningCustomers int `db:"returning_customers"`
	ProductsSold       int `db:"products_sold"`
}

// GetCustomerActivity reports customers registered since newSince, customers
// with more than one order, and units sold on orders that were not cancelled.
func (s *Store) GetCustomerActivity(ctx context.Context, newSince time.Time) (CustomerActivity, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE created_at >= $1) AS new_customers,
			(SELECT COUNT(*) FROM (
				SELECT customer_id FROM orders
				WHERE customer_id IS NOT NULL AND status <> 'cancelled'
				GROUP BY customer_id HAVING COUNT(*) > 1
			) repeat_buyers) AS returning_customers,
			(SELECT COALESCE(SUM(oi.quantity), 0)
				FROM order_items oi JOIN orders o ON o.id = oi.order_id
				WHERE o.status <> 'cancelled') AS products_sold`

	var a CustomerActivity
	if err := s.db.GetContext(ctx, &a, query, newSince); err != nil {
		return CustomerActivity{}, mapError(err, "customer activity")
	}
	return a, nil
}
