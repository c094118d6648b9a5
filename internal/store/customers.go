package store

import (
	"context"

	"pos-service/internal/models"
)

const customerColumns = `id, name, email, phone, address, points, created_at, updated_at`

// CreateCustomer inserts a customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, email, phone, address, points)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.Points).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "customer")
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.GetContext(ctx, &c, "SELECT "+customerColumns+" FROM customers WHERE id = $1", id); err != nil {
		return nil, mapError(err, "customer")
	}
	return &c, nil
}

// ListCustomers retrieves customers, newest first
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := s.db.SelectContext(ctx, &customers,
		"SELECT "+customerColumns+" FROM customers ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, mapError(err, "customer")
	}
	return customers, nil
}

// UpdateCustomer overwrites the editable fields of a customer
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers SET name = $1, email = $2, phone = $3, address = $4, points = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.Points, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "customer")
}

// DeleteCustomer removes a customer. Past orders keep their rows with
// customer_id cleared.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	return s.execOne(ctx, "customer", "DELETE FROM customers WHERE id = $1", id)
}

// GetCustomerByID reads a customer inside the order transaction. FOR SHARE
// keeps it from being deleted before the order commits.
func (t *Tx) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := t.tx.GetContext(ctx, &c,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1 FOR SHARE", id); err != nil {
		return nil, mapError(err, "customer")
	}
	return &c, nil
}
