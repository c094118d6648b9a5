package store

import (
	"context"
	"strings"

	"pos-service/internal/models"
)

const couponColumns = `id, code, discount_type, discount_value, min_purchase, max_discount, usage_limit,
	used_count, start_date, end_date, is_active, created_at, updated_at`

// CreateCoupon inserts a coupon; the code is normalised to uppercase
func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	query := `
		INSERT INTO coupons (code, discount_type, discount_value, min_purchase, max_discount,
		                     usage_limit, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, used_count, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		c.Code, c.DiscountType, c.DiscountValue, c.MinPurchase, c.MaxDiscount,
		c.UsageLimit, c.StartDate, c.EndDate, c.IsActive,
	).Scan(&c.ID, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "coupon")
}

// GetCouponByID retrieves a coupon by ID
func (s *Store) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var c models.Coupon
	if err := s.db.GetContext(ctx, &c, "SELECT "+couponColumns+" FROM coupons WHERE id = $1", id); err != nil {
		return nil, mapError(err, "coupon")
	}
	return &c, nil
}

// GetCouponByCode looks a coupon up case-insensitively
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.GetContext(ctx, &c,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, mapError(err, "coupon")
	}
	return &c, nil
}

// ListCoupons retrieves all coupons, newest first
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons := []models.Coupon{}
	if err := s.db.SelectContext(ctx, &coupons, "SELECT "+couponColumns+" FROM coupons ORDER BY id DESC"); err != nil {
		return nil, mapError(err, "coupon")
	}
	return coupons, nil
}

// UpdateCoupon overwrites the admin-editable coupon fields; used_count is
// owned by redemption and left alone.
func (s *Store) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	query := `
		UPDATE coupons
		SET code = $1, discount_type = $2, discount_value = $3, min_purchase = $4, max_discount = $5,
		    usage_limit = $6, start_date = $7, end_date = $8, is_active = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING used_count, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		c.Code, c.DiscountType, c.DiscountValue, c.MinPurchase, c.MaxDiscount,
		c.UsageLimit, c.StartDate, c.EndDate, c.IsActive, c.ID,
	).Scan(&c.UsedCount, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "coupon")
}

// DeleteCoupon removes a coupon; orders keep their coupon_code snapshot
func (s *Store) DeleteCoupon(ctx context.Context, id int64) error {
	return s.execOne(ctx, "coupon", "DELETE FROM coupons WHERE id = $1", id)
}

// GetCouponByCode reads a coupon inside the order transaction
func (t *Tx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := t.tx.GetContext(ctx, &c,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, mapError(err, "coupon")
	}
	return &c, nil
}

// RedeemCoupon consumes one use of a coupon. The increment is guarded in the
// same statement so two redemptions racing for the last slot cannot both win;
// false means the guard rejected it.
func (t *Tx) RedeemCoupon(ctx context.Context, couponID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND is_active AND (usage_limit = 0 OR used_count < usage_limit)`,
		couponID)
	if err != nil {
		return false, mapError(err, "coupon")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "coupon")
	}
	return n == 1, nil
}
