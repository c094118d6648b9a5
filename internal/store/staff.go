package store

import (
	"context"
	"strings"

	"pos-service/internal/models"
)

const staffColumns = `id, username, full_name, email, password_hash, role, is_active, created_at`

// CreateStaffUser inserts an account; usernames are stored lower-case
func (s *Store) CreateStaffUser(ctx context.Context, u *models.StaffUser) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	query := `
		INSERT INTO staff_users (username, full_name, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		u.Username, u.FullName, u.Email, u.PasswordHash, u.Role, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	return mapError(err, "staff user")
}

// GetStaffUserByUsername looks an account up for login
func (s *Store) GetStaffUserByUsername(ctx context.Context, username string) (*models.StaffUser, error) {
	var u models.StaffUser
	err := s.db.GetContext(ctx, &u,
		"SELECT "+staffColumns+" FROM staff_users WHERE username = $1",
		strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, mapError(err, "staff user")
	}
	return &u, nil
}

// GetStaffUserByID retrieves an account by ID
func (s *Store) GetStaffUserByID(ctx context.Context, id int64) (*models.StaffUser, error) {
	var u models.StaffUser
	if err := s.db.GetContext(ctx, &u, "SELECT "+staffColumns+" FROM staff_users WHERE id = $1", id); err != nil {
		return nil, mapError(err, "staff user")
	}
	return &u, nil
}

// CountStaffUsers reports how many accounts exist
func (s *Store) CountStaffUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM staff_users"); err != nil {
		return 0, mapError(err, "staff user")
	}
	return n, nil
}
