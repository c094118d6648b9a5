package service

import (
	"context"
	"strings"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// CatalogStore is the persistence CatalogService needs
type CatalogStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateBrand(ctx context.Context, b *models.Brand) error
	GetBrandByID(ctx context.Context, id int64) (*models.Brand, error)
	ListBrands(ctx context.Context) ([]models.Brand, error)
	UpdateBrand(ctx context.Context, b *models.Brand) error
	DeleteBrand(ctx context.Context, id int64) error
}

// CatalogService manages products, categories and brands
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.Logger("catalog"),
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Status == "" {
		p.Status = models.ProductStatusActive
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.store.CreateProduct(ctx, p)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	if f.Status != "" && !validProductStatus(f.Status) {
		return nil, apperr.Validationf("unknown product status %q", f.Status)
	}
	return s.store.ListProducts(ctx, f)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.store.UpdateProduct(ctx, p)
}

// AdjustStock applies a manual stock correction. A delta that would take
// stock below zero is rejected.
func (s *CatalogService) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	stock, err := s.store.AdjustStock(ctx, id, delta)
	if err == nil {
		s.logger.Info("Stock adjusted",
			zap.Int64("product_id", id),
			zap.Int("delta", delta),
			zap.Int("stock", stock))
		return stock, nil
	}
	if !apperr.IsNotFound(err) {
		return 0, err
	}

	// The guarded update matches nothing both for a missing product and for
	// an adjustment that would go negative.
	if _, getErr := s.store.GetProductByID(ctx, id); getErr != nil {
		return 0, getErr
	}
	return 0, apperr.Wrapf(apperr.KindConflict, apperr.ErrInsufficientStock, "product %d", id)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	return s.store.DeleteProduct(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c *models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validationf("name is required")
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.store.GetCategoryByID(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, c *models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validationf("name is required")
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return apperr.Validationf("a category cannot be its own parent")
	}
	return s.store.UpdateCategory(ctx, c)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *CatalogService) CreateBrand(ctx context.Context, b *models.Brand) error {
	if strings.TrimSpace(b.Name) == "" {
		return apperr.Validationf("name is required")
	}
	return s.store.CreateBrand(ctx, b)
}

func (s *CatalogService) GetBrand(ctx context.Context, id int64) (*models.Brand, error) {
	return s.store.GetBrandByID(ctx, id)
}

func (s *CatalogService) ListBrands(ctx context.Context) ([]models.Brand, error) {
	return s.store.ListBrands(ctx)
}

func (s *CatalogService) UpdateBrand(ctx context.Context, b *models.Brand) error {
	if strings.TrimSpace(b.Name) == "" {
		return apperr.Validationf("name is required")
	}
	return s.store.UpdateBrand(ctx, b)
}

func (s *CatalogService) DeleteBrand(ctx context.Context, id int64) error {
	return s.store.DeleteBrand(ctx, id)
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validationf("name is required")
	}
	if strings.TrimSpace(p.SKU) == "" {
		return apperr.Validationf("sku is required")
	}
	if !p.Price.IsPositive() {
		return apperr.Validationf("price must be greater than 0")
	}
	if p.Stock < 0 {
		return apperr.Validationf("stock cannot be negative")
	}
	if !validProductStatus(p.Status) {
		return apperr.Validationf("unknown product status %q", p.Status)
	}
	return nil
}

func validProductStatus(s string) bool {
	switch s {
	case models.ProductStatusActive, models.ProductStatusInactive, models.ProductStatusDeleted:
		return true
	}
	return false
}
