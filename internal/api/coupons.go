package api

import (
	"context"
	"net/http"

	"pos-service/internal/models"
	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CouponService is the coupon surface the handlers use
type CouponService interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*service.CouponValidation, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	GetCoupon(ctx context.Context, id int64) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, id int64) error
}

type validateCouponRequest struct {
	Code      string          `json:"code" binding:"required"`
	CartTotal decimal.Decimal `json:"cart_total"`
}

// validateCoupon previews a code against a cart; it never redeems
func (h *Handler) validateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Coupons.Validate(c.Request.Context(), req.Code, req.CartTotal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.Coupons.ListCoupons(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coupons)
}

func (h *Handler) getCoupon(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	coupon, err := h.Coupons.GetCoupon(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coupon)
}

func (h *Handler) createCoupon(c *gin.Context) {
	var coupon models.Coupon
	if !bindJSON(c, &coupon) {
		return
	}
	if err := h.Coupons.CreateCoupon(c.Request.Context(), &coupon); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *Handler) updateCoupon(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var coupon models.Coupon
	if !bindJSON(c, &coupon) {
		return
	}
	coupon.ID = id
	if err := h.Coupons.UpdateCoupon(c.Request.Context(), &coupon); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coupon)
}

func (h *Handler) deleteCoupon(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Coupons.DeleteCoupon(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
