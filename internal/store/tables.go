package store

import (
	"context"

	"pos-service/internal/models"
)

const tableColumns = `id, table_number, qr_token, qr_url, qr_image, capacity, status, deleted_at, created_at, updated_at`

// CreateTable inserts a table with its token and rendered QR
func (s *Store) CreateTable(ctx context.Context, t *models.Table) error {
	query := `
		INSERT INTO dining_tables (table_number, qr_token, qr_url, qr_image, capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		t.TableNumber, t.QRToken, t.QRURL, t.QRImage, t.Capacity, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapError(err, "table")
}

// GetTableByID retrieves a live table by ID
func (s *Store) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	var t models.Table
	err := s.db.GetContext(ctx, &t,
		"SELECT "+tableColumns+" FROM dining_tables WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return nil, mapError(err, "table")
	}
	return &t, nil
}

// GetTableByToken resolves a scanned QR token to its live table
func (s *Store) GetTableByToken(ctx context.Context, token string) (*models.Table, error) {
	var t models.Table
	err := s.db.GetContext(ctx, &t,
		"SELECT "+tableColumns+" FROM dining_tables WHERE qr_token = $1 AND deleted_at IS NULL", token)
	if err != nil {
		return nil, mapError(err, "table")
	}
	return &t, nil
}

// ListTables retrieves live tables ordered by number
func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	tables := []models.Table{}
	err := s.db.SelectContext(ctx, &tables,
		"SELECT "+tableColumns+" FROM dining_tables WHERE deleted_at IS NULL ORDER BY table_number")
	if err != nil {
		return nil, mapError(err, "table")
	}
	return tables, nil
}

// UpdateTable overwrites number, capacity and status; the token never changes
func (s *Store) UpdateTable(ctx context.Context, t *models.Table) error {
	query := `
		UPDATE dining_tables SET table_number = $1, capacity = $2, status = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING qr_token, qr_url, qr_image, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, t.TableNumber, t.Capacity, t.Status, t.ID).
		Scan(&t.QRToken, &t.QRURL, &t.QRImage, &t.CreatedAt, &t.UpdatedAt)
	return mapError(err, "table")
}

// UpdateTableQR replaces the rendered URL and image of a table
func (s *Store) UpdateTableQR(ctx context.Context, id int64, url, image string) error {
	return s.execOne(ctx, "table",
		"UPDATE dining_tables SET qr_url = $1, qr_image = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL",
		url, image, id)
}

// DeleteTable soft-deletes a table. The row, and so its token, is kept so the
// token can never be issued again.
func (s *Store) DeleteTable(ctx context.Context, id int64) error {
	return s.execOne(ctx, "table",
		"UPDATE dining_tables SET status = 'deleted', deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL",
		id)
}
