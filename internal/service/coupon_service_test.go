package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCouponStore struct {
	byCode map[string]*models.Coupon
	nextID int64
}

func newMemCouponStore(coupons ...models.Coupon) *memCouponStore {
	s := &memCouponStore{byCode: map[string]*models.Coupon{}}
	for i := range coupons {
		c := coupons[i]
		s.byCode[c.Code] = &c
	}
	return s
}

func (m *memCouponStore) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = normalizeCode(c.Code)
	if _, ok := m.byCode[c.Code]; ok {
		return apperr.Conflictf("coupon already exists")
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.byCode[c.Code] = &cp
	return nil
}

func (m *memCouponStore) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	for _, c := range m.byCode {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("coupon not found")
}

func (m *memCouponStore) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := m.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, apperr.NotFoundf("coupon not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memCouponStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	out := []models.Coupon{}
	for _, c := range m.byCode {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCouponStore) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	m.byCode[normalizeCode(c.Code)] = c
	return nil
}

func (m *memCouponStore) DeleteCoupon(ctx context.Context, id int64) error {
	for code, c := range m.byCode {
		if c.ID == id {
			delete(m.byCode, code)
			return nil
		}
	}
	return apperr.NotFoundf("coupon not found")
}

var welcome10 = models.Coupon{
	ID:            1,
	Code:          "WELCOME10",
	DiscountType:  models.DiscountTypePercentage,
	DiscountValue: decimal.NewFromInt(10),
	MinPurchase:   decimal.NewFromInt(30000),
	MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(50000)),
	UsageLimit:    100,
	IsActive:      true,
}

var hemat20k = models.Coupon{
	ID:            2,
	Code:          "HEMAT20K",
	DiscountType:  models.DiscountTypeNominal,
	DiscountValue: decimal.NewFromInt(20000),
	MinPurchase:   decimal.NewFromInt(100000),
	IsActive:      true,
}

func TestEvaluateCouponScenarios(t *testing.T) {
	now := time.Now()

	t.Run("percentage under cap", func(t *testing.T) {
		d, err := EvaluateCoupon(&welcome10, dec(200000), now)
		require.NoError(t, err)
		assert.True(t, d.Equal(dec(20000)), d.String())
	})

	t.Run("percentage not clamped below cap", func(t *testing.T) {
		d, err := EvaluateCoupon(&welcome10, dec(400000), now)
		require.NoError(t, err)
		assert.True(t, d.Equal(dec(40000)), d.String())
	})

	t.Run("percentage clamped to cap", func(t *testing.T) {
		d, err := EvaluateCoupon(&welcome10, dec(900000), now)
		require.NoError(t, err)
		assert.True(t, d.Equal(dec(50000)), d.String())
	})

	t.Run("minimum purchase not met", func(t *testing.T) {
		d, err := EvaluateCoupon(&hemat20k, dec(50000), now)
		assert.True(t, errors.Is(err, apperr.ErrMinimumPurchase))
		assert.True(t, d.IsZero())
	})

	t.Run("nominal clamped to cart total", func(t *testing.T) {
		c := hemat20k
		c.MinPurchase = decimal.Zero
		d, err := EvaluateCoupon(&c, dec(15000), now)
		require.NoError(t, err)
		assert.True(t, d.Equal(dec(15000)))
	})
}

func TestEvaluateCouponEligibility(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		name   string
		mutate func(c *models.Coupon)
		want   error
	}{
		{"inactive", func(c *models.Coupon) { c.IsActive = false }, apperr.ErrCouponInactive},
		{"not started", func(c *models.Coupon) { c.StartDate = &future }, apperr.ErrCouponNotStarted},
		{"expired", func(c *models.Coupon) { c.EndDate = &past }, apperr.ErrCouponExpired},
		{"exhausted", func(c *models.Coupon) { c.UsedCount = 100 }, apperr.ErrCouponExhausted},
		{"open window", func(c *models.Coupon) { c.StartDate, c.EndDate = &past, &future }, nil},
		{"unlimited", func(c *models.Coupon) { c.UsageLimit, c.UsedCount = 0, 5000 }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := welcome10
			tc.mutate(&c)
			_, err := EvaluateCoupon(&c, dec(200000), now)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestResolveIsReadOnly(t *testing.T) {
	store := newMemCouponStore(welcome10)
	svc := NewCouponService(store)

	for i := 0; i < 3; i++ {
		d, err := svc.Resolve(context.Background(), "welcome10", dec(200000))
		require.NoError(t, err)
		assert.True(t, d.FinalTotal.Equal(dec(180000)))
	}

	assert.Equal(t, 0, store.byCode["WELCOME10"].UsedCount)
}

func TestValidatePreview(t *testing.T) {
	svc := NewCouponService(newMemCouponStore(welcome10, hemat20k))
	ctx := context.Background()

	res, err := svc.Validate(ctx, "HEMAT20K", dec(50000))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "minimum purchase not met", res.Message)
	assert.True(t, res.DiscountAmount.IsZero())
	assert.True(t, res.FinalTotal.Equal(dec(50000)))

	res, err = svc.Validate(ctx, "missing", dec(50000))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "MISSING", res.Code)
	assert.Equal(t, "coupon not found", res.Message)

	res, err = svc.Validate(ctx, "welcome10", dec(400000))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.DiscountAmount.Equal(dec(40000)))
	assert.True(t, res.FinalTotal.Equal(dec(360000)))
}

func TestCreateCouponValidation(t *testing.T) {
	svc := NewCouponService(newMemCouponStore())
	ctx := context.Background()
	start := time.Now()
	end := start.Add(-time.Hour)

	bad := []models.Coupon{
		{Code: "", DiscountType: models.DiscountTypeNominal, DiscountValue: dec(1)},
		{Code: "X", DiscountType: "bogo", DiscountValue: dec(1)},
		{Code: "X", DiscountType: models.DiscountTypeNominal, DiscountValue: dec(0)},
		{Code: "X", DiscountType: models.DiscountTypePercentage, DiscountValue: dec(101)},
		{Code: "X", DiscountType: models.DiscountTypeNominal, DiscountValue: dec(1), UsageLimit: -1},
		{Code: "X", DiscountType: models.DiscountTypeNominal, DiscountValue: dec(1), StartDate: &start, EndDate: &end},
	}
	for i := range bad {
		err := svc.CreateCoupon(ctx, &bad[i])
		assert.True(t, apperr.IsValidation(err), "case %d: %v", i, err)
	}

	ok := models.Coupon{Code: "new10", DiscountType: models.DiscountTypePercentage, DiscountValue: dec(10), IsActive: true}
	require.NoError(t, svc.CreateCoupon(ctx, &ok))
	assert.Equal(t, "NEW10", ok.Code)
	assert.NotZero(t, ok.ID)
}
