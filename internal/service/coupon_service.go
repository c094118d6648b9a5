package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// CouponStore is the persistence CouponService needs
type CouponStore interface {
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, id int64) error
}

// CouponService manages coupons and previews discounts
type CouponService struct {
	store  CouponStore
	now    func() time.Time
	logger *zap.Logger
}

// NewCouponService creates a new coupon service
func NewCouponService(store CouponStore) *CouponService {
	return &CouponService{
		store:  store,
		now:    time.Now,
		logger: util.Logger("coupons"),
	}
}

// Discount is the outcome of resolving a coupon against a cart
type Discount struct {
	Coupon         *models.Coupon  `json:"-"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
}

// CouponValidation is the preview shown to a customer typing a code
type CouponValidation struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
	Message        string          `json:"message"`
}

// EvaluateCoupon checks c against cartTotal at now and computes the
// discount. It never mutates c.
func EvaluateCoupon(c *models.Coupon, cartTotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	switch {
	case !c.IsActive:
		return decimal.Zero, apperr.ErrCouponInactive
	case c.StartDate != nil && now.Before(*c.StartDate):
		return decimal.Zero, apperr.ErrCouponNotStarted
	case c.EndDate != nil && now.After(*c.EndDate):
		return decimal.Zero, apperr.ErrCouponExpired
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return decimal.Zero, apperr.ErrCouponExhausted
	case cartTotal.LessThan(c.MinPurchase):
		return decimal.Zero, apperr.ErrMinimumPurchase
	}

	var discount decimal.Decimal
	if c.DiscountType == models.DiscountTypePercentage {
		discount = cartTotal.Mul(c.DiscountValue).Div(hundred).Round(2)
	} else {
		discount = c.DiscountValue
	}

	if c.MaxDiscount.Valid && discount.GreaterThan(c.MaxDiscount.Decimal) {
		discount = c.MaxDiscount.Decimal
	}
	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount, nil
}

// Resolve looks code up and computes its discount for cartTotal. It is
// read-only: redemption happens only when an order commits.
func (s *CouponService) Resolve(ctx context.Context, code string, cartTotal decimal.Decimal) (*Discount, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Resolve")
	defer span.End()

	coupon, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Wrapf(apperr.KindConflict, apperr.ErrCouponNotFound, "coupon %s", normalizeCode(code))
		}
		return nil, err
	}

	discount, err := EvaluateCoupon(coupon, cartTotal, s.now())
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindConflict, err, "coupon %s", coupon.Code)
	}

	return &Discount{
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalTotal:     cartTotal.Sub(discount),
	}, nil
}

// Validate is Resolve shaped for the preview endpoint: ineligible codes are
// reported in the result rather than as an error.
func (s *CouponService) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*CouponValidation, error) {
	res := &CouponValidation{
		Code:           normalizeCode(code),
		DiscountAmount: decimal.Zero,
		FinalTotal:     cartTotal,
	}

	d, err := s.Resolve(ctx, code, cartTotal)
	if err != nil {
		if !apperr.IsConflict(err) {
			return nil, err
		}
		res.Message = couponMessage(err)
		return res, nil
	}

	res.Valid = true
	res.DiscountAmount = d.DiscountAmount
	res.FinalTotal = d.FinalTotal
	res.Message = "coupon applied"
	return res, nil
}

// CreateCoupon validates and inserts a coupon
func (s *CouponService) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if err := validateCoupon(c); err != nil {
		return err
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return err
	}
	s.logger.Info("Coupon created", zap.Int64("coupon_id", c.ID), zap.String("code", c.Code))
	return nil
}

// GetCoupon retrieves a coupon by ID
func (s *CouponService) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	return s.store.GetCouponByID(ctx, id)
}

// ListCoupons retrieves all coupons
func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.store.ListCoupons(ctx)
}

// UpdateCoupon validates and overwrites a coupon
func (s *CouponService) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	if err := validateCoupon(c); err != nil {
		return err
	}
	return s.store.UpdateCoupon(ctx, c)
}

// DeleteCoupon removes a coupon
func (s *CouponService) DeleteCoupon(ctx context.Context, id int64) error {
	return s.store.DeleteCoupon(ctx, id)
}

func validateCoupon(c *models.Coupon) error {
	if normalizeCode(c.Code) == "" {
		return apperr.Validationf("code is required")
	}
	if c.DiscountType != models.DiscountTypePercentage && c.DiscountType != models.DiscountTypeNominal {
		return apperr.Validationf("discount_type must be %s or %s", models.DiscountTypePercentage, models.DiscountTypeNominal)
	}
	if !c.DiscountValue.IsPositive() {
		return apperr.Validationf("discount_value must be greater than 0")
	}
	if c.DiscountType == models.DiscountTypePercentage && c.DiscountValue.GreaterThan(hundred) {
		return apperr.Validationf("percentage discount cannot exceed 100")
	}
	if c.MinPurchase.IsNegative() {
		return apperr.Validationf("min_purchase cannot be negative")
	}
	if c.MaxDiscount.Valid && !c.MaxDiscount.Decimal.IsPositive() {
		return apperr.Validationf("max_discount must be greater than 0")
	}
	if c.UsageLimit < 0 {
		return apperr.Validationf("usage_limit cannot be negative")
	}
	if c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate) {
		return apperr.Validationf("end_date must be after start_date")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func couponMessage(err error) string {
	for _, sentinel := range []error{
		apperr.ErrCouponNotFound,
		apperr.ErrCouponInactive,
		apperr.ErrCouponNotStarted,
		apperr.ErrCouponExpired,
		apperr.ErrCouponExhausted,
		apperr.ErrMinimumPurchase,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
