package api

import (
	"context"
	"net/http"

	"pos-service/internal/models"

	"github.com/gin-gonic/gin"
)

// CustomerService is the customer surface the handlers use
type CustomerService interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
}

type customerRequest struct {
	Name    string  `json:"name" binding:"required,max=100"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=32"`
	Address string  `json:"address"`
	Points  int     `json:"points" binding:"min=0"`
}

func (r customerRequest) customer() *models.Customer {
	return &models.Customer{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		Points:  r.Points,
	}
}

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.Customers.ListCustomers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cust, err := h.Customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) createCustomer(c *gin.Context) {
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}
	cust := req.customer()
	if err := h.Customers.CreateCustomer(c.Request.Context(), cust); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h *Handler) updateCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}
	cust := req.customer()
	cust.ID = id
	if err := h.Customers.UpdateCustomer(c.Request.Context(), cust); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Customers.DeleteCustomer(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
