package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finmark/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, product_id, name, description, category, price, stock_quantity, min_stock_level,
	is_active, images, specifications, supplier, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, product_id, name, description, category, price, stock_quantity,
			min_stock_level, is_active, images, specifications, supplier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := s.get(ctx, p, query,
		p.ID, p.ProductID, p.Name, p.Description, p.Category, p.Price, p.StockQuantity,
		p.MinStockLevel, p.IsActive, p.Images, p.Specifications, p.Supplier)
	return mapError(err)
}

// GetProduct retrieves a product by its business key, active or not
func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	if err := s.get(ctx, &p, "SELECT "+productColumns+" FROM products WHERE product_id = $1", productID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductForUpdate retrieves a product and locks its row until the
// surrounding transaction ends
func (s *Store) GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := s.get(ctx, &p, "SELECT "+productColumns+" FROM products WHERE product_id = $1 FOR UPDATE", productID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductsByIDs retrieves multiple products by business key
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE product_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	products := []models.Product{}
	err = s.selectRows(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct writes every mutable column of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET name = $2, description = $3, category = $4, price = $5, stock_quantity = $6,
			min_stock_level = $7, is_active = $8, images = $9, specifications = $10, supplier = $11,
			updated_at = NOW()
		WHERE product_id = $1
		RETURNING updated_at`

	err := s.get(ctx, &p.UpdatedAt, query,
		p.ProductID, p.Name, p.Description, p.Category, p.Price, p.StockQuantity,
		p.MinStockLevel, p.IsActive, p.Images, p.Specifications, p.Supplier)
	return mapError(err)
}

// AdjustStock adds delta to the stock of a product and returns the new
// quantity. The update only applies when the result stays non-negative.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := s.get(ctx, &stock, `
		UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE product_id = $2 AND stock_quantity + $1 >= 0
		RETURNING stock_quantity`, delta, productID)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetProduct(ctx, productID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	return stock, err
}

// ListProducts returns a page of active products, newest first, and the total count
func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	where := []string{"is_active"}
	args := []interface{}{}

	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR product_id ILIKE $%d)", n, n, n))
	}
	if f.InStock {
		where = append(where, "stock_quantity > 0")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM products WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		productColumns, cond, len(args)-1, len(args))

	products := []models.Product{}
	err := s.selectRows(ctx, &products, query, args...)
	return products, total, err
}

// LowStockProducts returns active products at or below their reorder level
func (s *Store) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectRows(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE is_active AND stock_quantity <= min_stock_level ORDER BY stock_quantity, product_id")
	return products, err
}

// CountProducts counts active products
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.get(ctx, &n, "SELECT COUNT(*) FROM products WHERE is_active")
	return n, err
}

// Categories lists the distinct categories of active products
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := s.selectRows(ctx, &categories,
		"SELECT DISTINCT category FROM products WHERE is_active ORDER BY category")
	return categories, err
}
