package service

import (
	"context"
	"strings"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// CustomerStore is the persistence CustomerService needs
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
}

// CustomerService manages the customers takeaway orders are placed for
type CustomerService struct {
	store  CustomerStore
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.Logger("customers"),
	}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if err := normalizeCustomer(c); err != nil {
		return err
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return err
	}
	s.logger.Info("Customer created", zap.Int64("customer_id", c.ID))
	return nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.store.GetCustomerByID(ctx, id)
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	if err := normalizeCustomer(c); err != nil {
		return err
	}
	return s.store.UpdateCustomer(ctx, c)
}

// DeleteCustomer removes a customer; their orders stay, unlinked
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Customer deleted", zap.Int64("customer_id", id))
	return nil
}

// normalizeCustomer trims input and turns blank contact fields into NULLs,
// so the unique email index only sees real addresses.
func normalizeCustomer(c *models.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Email = blankToNil(c.Email)
	c.Phone = blankToNil(c.Phone)

	switch {
	case c.Name == "":
		return apperr.Validationf("name is required")
	case len([]rune(c.Name)) > maxCustomerNameLen:
		return apperr.Validationf("name must be at most %d characters", maxCustomerNameLen)
	case c.Points < 0:
		return apperr.Validationf("points cannot be negative")
	}
	if c.Email != nil {
		lower := strings.ToLower(*c.Email)
		c.Email = &lower
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
