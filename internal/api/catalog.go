package api

import (
	"context"
	"net/http"
	"strconv"

	"pos-service/internal/models"
	"pos-service/internal/store"

	"github.com/gin-gonic/gin"
)

// CatalogService is the catalog surface the handlers use
type CatalogService interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateBrand(ctx context.Context, b *models.Brand) error
	GetBrand(ctx context.Context, id int64) (*models.Brand, error)
	ListBrands(ctx context.Context) ([]models.Brand, error)
	UpdateBrand(ctx context.Context, b *models.Brand) error
	DeleteBrand(ctx context.Context, id int64) error
}

func (h *Handler) listProducts(c *gin.Context) {
	categoryID, _ := strconv.ParseInt(c.Query("category_id"), 10, 64)
	products, err := h.Catalog.ListProducts(c.Request.Context(), store.ProductFilter{
		CategoryID: categoryID,
		Status:     c.Query("status"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) createProduct(c *gin.Context) {
	var p models.Product
	if !bindJSON(c, &p) {
		return
	}
	if err := h.Catalog.CreateProduct(c.Request.Context(), &p); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var p models.Product
	if !bindJSON(c, &p) {
		return
	}
	p.ID = id
	if err := h.Catalog.UpdateProduct(c.Request.Context(), &p); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type adjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req adjustStockRequest
	if !bindJSON(c, &req) {
		return
	}
	stock, err := h.Catalog.AdjustStock(c.Request.Context(), id, req.Delta)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "stock": stock})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) getCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	category, err := h.Catalog.GetCategory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) createCategory(c *gin.Context) {
	var category models.Category
	if !bindJSON(c, &category) {
		return
	}
	if err := h.Catalog.CreateCategory(c.Request.Context(), &category); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) updateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var category models.Category
	if !bindJSON(c, &category) {
		return
	}
	category.ID = id
	if err := h.Catalog.UpdateCategory(c.Request.Context(), &category); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listBrands(c *gin.Context) {
	brands, err := h.Catalog.ListBrands(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brands)
}

func (h *Handler) getBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	brand, err := h.Catalog.GetBrand(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brand)
}

func (h *Handler) createBrand(c *gin.Context) {
	var brand models.Brand
	if !bindJSON(c, &brand) {
		return
	}
	if err := h.Catalog.CreateBrand(c.Request.Context(), &brand); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, brand)
}

func (h *Handler) updateBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var brand models.Brand
	if !bindJSON(c, &brand) {
		return
	}
	brand.ID = id
	if err := h.Catalog.UpdateBrand(c.Request.Context(), &brand); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brand)
}

func (h *Handler) deleteBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteBrand(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
