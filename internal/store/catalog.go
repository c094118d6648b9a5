package store

import (
	"context"
	"database/sql"
	"strconv"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, sku, price, stock, category_id, brand_id, description, image_url, status, created_at, updated_at`

// ProductFilter narrows ListProducts; zero values mean no filter
type ProductFilter struct {
	CategoryID int64
	Status     string
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, sku, price, stock, category_id, brand_id, description, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.SKU, p.Price, p.Stock, p.CategoryID, p.BrandID, p.Description, p.ImageURL, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "product")
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "product")
	}
	return &product, nil
}

// ListProducts retrieves products, newest first; deleted products are hidden
// unless explicitly requested.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE 1=1"
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	} else {
		query += " AND status <> 'deleted'"
	}
	if f.CategoryID > 0 {
		args = append(args, f.CategoryID)
		query += " AND category_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY id DESC"

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, mapError(err, "product")
	}
	return products, nil
}

// UpdateProduct overwrites the editable product fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, sku = $2, price = $3, stock = $4, category_id = $5, brand_id = $6,
		    description = $7, image_url = $8, status = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.SKU, p.Price, p.Stock, p.CategoryID, p.BrandID, p.Description, p.ImageURL, p.Status, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "product")
}

// AdjustStock applies an admin stock delta; the result may not go negative
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := s.db.GetContext(ctx, &stock,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2 AND stock + $1 >= 0 RETURNING stock",
		delta, id)
	if err != nil {
		return 0, mapError(err, "product")
	}
	return stock, nil
}

// DeleteProduct soft-deletes a product so order item snapshots stay valid
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.execOne(ctx, "product",
		"UPDATE products SET status = 'deleted', updated_at = NOW() WHERE id = $1 AND status <> 'deleted'", id)
}

// CreateCategory inserts a category
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.db.QueryRowxContext(ctx,
		"INSERT INTO categories (name, description, parent_id) VALUES ($1, $2, $3) RETURNING id, created_at",
		c.Name, c.Description, c.ParentID,
	).Scan(&c.ID, &c.CreatedAt)
	return mapError(err, "category")
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM categories WHERE id = $1", id); err != nil {
		return nil, mapError(err, "category")
	}
	return &c, nil
}

// ListCategories retrieves all categories by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY name"); err != nil {
		return nil, mapError(err, "category")
	}
	return categories, nil
}

// UpdateCategory overwrites a category
func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	return s.execOne(ctx, "category",
		"UPDATE categories SET name = $1, description = $2, parent_id = $3 WHERE id = $4",
		c.Name, c.Description, c.ParentID, c.ID)
}

// DeleteCategory removes a category; products keep existing with a null category
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.execOne(ctx, "category", "DELETE FROM categories WHERE id = $1", id)
}

// CreateBrand inserts a brand
func (s *Store) CreateBrand(ctx context.Context, b *models.Brand) error {
	err := s.db.QueryRowxContext(ctx,
		"INSERT INTO brands (name, description, logo_url) VALUES ($1, $2, $3) RETURNING id, created_at",
		b.Name, b.Description, b.LogoURL,
	).Scan(&b.ID, &b.CreatedAt)
	return mapError(err, "brand")
}

// GetBrandByID retrieves a brand by ID
func (s *Store) GetBrandByID(ctx context.Context, id int64) (*models.Brand, error) {
	var b models.Brand
	if err := s.db.GetContext(ctx, &b, "SELECT * FROM brands WHERE id = $1", id); err != nil {
		return nil, mapError(err, "brand")
	}
	return &b, nil
}

// ListBrands retrieves all brands by name
func (s *Store) ListBrands(ctx context.Context) ([]models.Brand, error) {
	brands := []models.Brand{}
	if err := s.db.SelectContext(ctx, &brands, "SELECT * FROM brands ORDER BY name"); err != nil {
		return nil, mapError(err, "brand")
	}
	return brands, nil
}

// UpdateBrand overwrites a brand
func (s *Store) UpdateBrand(ctx context.Context, b *models.Brand) error {
	return s.execOne(ctx, "brand",
		"UPDATE brands SET name = $1, description = $2, logo_url = $3 WHERE id = $4",
		b.Name, b.Description, b.LogoURL, b.ID)
}

// DeleteBrand removes a brand; products keep existing with a null brand
func (s *Store) DeleteBrand(ctx context.Context, id int64) error {
	return s.execOne(ctx, "brand", "DELETE FROM brands WHERE id = $1", id)
}

// GetProductsForUpdate loads and row-locks the given products inside a transaction
func (t *Tx) GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = t.tx.Rebind(query)

	var products []models.Product
	if err := t.tx.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, mapError(err, "product")
	}
	return products, nil
}

// DecrementStock removes quantity from a product only if enough remains.
// It reports false when the guard rejected the update.
func (t *Tx) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return false, mapError(err, "product")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "product")
	}
	return n == 1, nil
}

// execOne runs a write that must touch exactly one row
func (s *Store) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, what)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows, what)
	}
	return nil
}
