package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finmark/internal/models"
	"finmark/internal/store"
	"finmark/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMinStockLevel = 10

// ProductService manages the catalog
type ProductService struct {
	products ProductRepository
	tx       Transactor
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductRepository, tx Transactor) *ProductService {
	return &ProductService{products: products, tx: tx, logger: util.GetLogger()}
}

// SupplierRequest is the supplier part of a product request
type SupplierRequest struct {
	Name    string `json:"name" validate:"omitempty,min=2,max=100"`
	Contact string `json:"contact" validate:"omitempty,min=5,max=100"`
}

// CreateProductRequest represents a request to add a catalog entry
type CreateProductRequest struct {
	ProductID      string            `json:"productId" validate:"required,min=3,max=20,productid"`
	Name           string            `json:"name" validate:"required,min=1,max=100"`
	Description    string            `json:"description" validate:"required,min=10,max=500"`
	Category       string            `json:"category" validate:"required,min=2,max=50"`
	Price          *decimal.Decimal  `json:"price"`
	StockQuantity  *int              `json:"stockQuantity" validate:"omitempty,gte=0"`
	MinStockLevel  *int              `json:"minStockLevel" validate:"omitempty,gte=0"`
	Images         []string          `json:"images" validate:"omitempty,dive,url"`
	Specifications map[string]string `json:"specifications"`
	Supplier       *SupplierRequest  `json:"supplier"`
}

// UpdateProductRequest is a partial product update. Nil fields are left unchanged.
type UpdateProductRequest struct {
	Name           *string           `json:"name" validate:"omitempty,min=1,max=100"`
	Description    *string           `json:"description" validate:"omitempty,min=10,max=500"`
	Category       *string           `json:"category" validate:"omitempty,min=2,max=50"`
	Price          *decimal.Decimal  `json:"price"`
	StockQuantity  *int              `json:"stockQuantity" validate:"omitempty,gte=0"`
	MinStockLevel  *int              `json:"minStockLevel" validate:"omitempty,gte=0"`
	IsActive       *bool             `json:"isActive"`
	Images         []string          `json:"images" validate:"omitempty,dive,url"`
	Specifications map[string]string `json:"specifications"`
	Supplier       *SupplierRequest  `json:"supplier"`
}

// UpdateStockRequest sets stock levels directly
type UpdateStockRequest struct {
	StockQuantity *int `json:"stockQuantity" validate:"omitempty,gte=0"`
	MinStockLevel *int `json:"minStockLevel" validate:"omitempty,gte=0"`
}

// ListProductsRequest carries catalog listing filters
type ListProductsRequest struct {
	Category string
	Search   string
	InStock  bool
	Page     int
	Limit    int
}

// ProductPage is one page of a catalog listing
type ProductPage struct {
	Products   []models.Product  `json:"products"`
	Pagination models.Pagination `json:"pagination"`
}

func priceErrors(price *decimal.Decimal, required bool) []FieldError {
	if price == nil {
		if required {
			return []FieldError{{Field: "price", Message: "price is required"}}
		}
		return nil
	}
	if price.IsNegative() {
		return []FieldError{{Field: "price", Message: "Price must be a positive number", Value: price.String()}}
	}
	return nil
}

// ListProducts returns a page of active products, newest first
func (s *ProductService) ListProducts(ctx context.Context, req ListProductsRequest) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	products, total, err := s.products.ListProducts(ctx, models.ProductFilter{
		Category: strings.TrimSpace(req.Category),
		Search:   strings.TrimSpace(req.Search),
		InStock:  req.InStock,
		Offset:   (req.Page - 1) * req.Limit,
		Limit:    req.Limit,
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{
		Products:   products,
		Pagination: models.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// normalizeProductID maps a business key to its stored form
func normalizeProductID(productID string) string {
	return strings.ToUpper(strings.TrimSpace(productID))
}

// GetProduct returns an active product
func (s *ProductService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	p, err := s.products.GetProduct(ctx, normalizeProductID(productID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("Product not found.")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !p.IsActive {
		return nil, NotFound("Product not found.")
	}
	return p, nil
}

// CreateProduct adds a catalog entry
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	req.ProductID = normalizeProductID(req.ProductID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if err := validateStruct(req, priceErrors(req.Price, true)...); err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:             uuid.New().String(),
		ProductID:      req.ProductID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Price:          *req.Price,
		MinStockLevel:  defaultMinStockLevel,
		IsActive:       true,
		Images:         req.Images,
		Specifications: req.Specifications,
	}
	if req.StockQuantity != nil {
		p.StockQuantity = *req.StockQuantity
	}
	if req.MinStockLevel != nil {
		p.MinStockLevel = *req.MinStockLevel
	}
	if req.Supplier != nil {
		p.Supplier = models.Supplier{Name: req.Supplier.Name, Contact: req.Supplier.Contact}
	}

	if err := s.products.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict("Product with ID %s already exists.", p.ProductID)
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", p.ProductID),
		zap.Int("stock", p.StockQuantity))
	return p, nil
}

// UpdateProduct applies a partial update to a product. Inactive products can
// be updated, which is how a soft-deleted product is restored.
func (s *ProductService) UpdateProduct(ctx context.Context, productID string, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	productID = normalizeProductID(productID)
	trimPtr(req.Name)
	trimPtr(req.Description)
	trimPtr(req.Category)
	if err := validateStruct(req, priceErrors(req.Price, false)...); err != nil {
		return nil, err
	}

	var p *models.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.products.GetProductForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound("Product not found.")
			}
			return fmt.Errorf("failed to load product: %w", err)
		}
		applyProductUpdate(p, req)
		if err := s.products.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("product_id", p.ProductID))
	return p, nil
}

func applyProductUpdate(p *models.Product, req *UpdateProductRequest) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.StockQuantity != nil {
		p.StockQuantity = *req.StockQuantity
	}
	if req.MinStockLevel != nil {
		p.MinStockLevel = *req.MinStockLevel
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.Images != nil {
		p.Images = req.Images
	}
	if req.Specifications != nil {
		p.Specifications = req.Specifications
	}
	if req.Supplier != nil {
		p.Supplier = models.Supplier{Name: req.Supplier.Name, Contact: req.Supplier.Contact}
	}
}

// DeleteProduct soft-deletes a product
func (s *ProductService) DeleteProduct(ctx context.Context, productID string) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()

	productID = normalizeProductID(productID)

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetProductForUpdate(ctx, productID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !p.IsActive) {
			return NotFound("Product not found.")
		}
		if err != nil {
			return fmt.Errorf("failed to load product: %w", err)
		}
		p.IsActive = false
		if err := s.products.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return err
	}

	s.logger.Info("Product deactivated", zap.String("product_id", productID))
	return nil
}

// UpdateStock sets stock quantity and reorder level directly
func (s *ProductService) UpdateStock(ctx context.Context, productID string, req *UpdateStockRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateStock")
	defer span.End()

	productID = normalizeProductID(productID)

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var updated *models.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetProductForUpdate(ctx, productID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !p.IsActive) {
			return NotFound("Product not found.")
		}
		if err != nil {
			return fmt.Errorf("failed to load product: %w", err)
		}
		if req.StockQuantity != nil {
			p.StockQuantity = *req.StockQuantity
		}
		if req.MinStockLevel != nil {
			p.MinStockLevel = *req.MinStockLevel
		}
		if err := s.products.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.StockAdjustmentsTotal.WithLabelValues("manual").Inc()
	s.logger.Info("Stock updated",
		zap.String("product_id", productID),
		zap.Int("stock", updated.StockQuantity),
		zap.Int("min_stock_level", updated.MinStockLevel))
	return updated, nil
}

// LowStockProducts lists active products at or below their reorder level
func (s *ProductService) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.LowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}

// Categories lists the distinct categories of active products
func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.products.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
