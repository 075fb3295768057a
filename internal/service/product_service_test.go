package service

import (
	"context"
	"testing"

	"finmark/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProducts(t *testing.T) (*store.MemoryStore, *ProductService) {
	t.Helper()
	mem := store.NewMemoryStore()
	return mem, NewProductService(mem, mem)
}

func createRequest(productID string, price string, stock int) *CreateProductRequest {
	p := decimal.RequireFromString(price)
	return &CreateProductRequest{
		ProductID:     productID,
		Name:          "Ballpoint pen " + productID,
		Description:   "Blue ink ballpoint pen, box of twelve",
		Category:      "Office",
		Price:         &p,
		StockQuantity: &stock,
	}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	_, svc := setupProducts(t)

	p, err := svc.CreateProduct(ctx, createRequest(" pen-001 ", "12.50", 30))
	require.NoError(t, err)
	assert.Equal(t, "PEN-001", p.ProductID)
	assert.Equal(t, 10, p.MinStockLevel)
	assert.True(t, p.IsActive)
	assert.True(t, p.InStock())

	_, err = svc.CreateProduct(ctx, createRequest("PEN-001", "1", 1))
	assert.Equal(t, KindConflict, KindOf(err))

	got, err := svc.GetProduct(ctx, "PEN-001")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Price))
}

func TestCreateProduct_Validation(t *testing.T) {
	ctx := context.Background()
	_, svc := setupProducts(t)

	req := createRequest("PEN-002", "-1", 1)
	_, err := svc.CreateProduct(ctx, req)
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Fields, 1)
	assert.Equal(t, "price", se.Fields[0].Field)

	req = createRequest("PEN_002", "1", 1)
	req.Description = "short"
	req.Price = nil
	_, err = svc.CreateProduct(ctx, req)
	require.ErrorAs(t, err, &se)
	fields := map[string]bool{}
	for _, f := range se.Fields {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{"productId": true, "description": true, "price": true}, fields)

	neg := -5
	req = createRequest("PEN-003", "1", 1)
	req.StockQuantity = &neg
	_, err = svc.CreateProduct(ctx, req)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()
	_, svc := setupProducts(t)

	for _, id := range []string{"PEN-001", "PEN-002", "PEN-003"} {
		_, err := svc.CreateProduct(ctx, createRequest(id, "1", 5))
		require.NoError(t, err)
	}
	paper := createRequest("PAPER-1", "3", 0)
	paper.Name = "Copy paper"
	paper.Description = "A4 copy paper, five hundred sheets"
	paper.Category = "Paper"
	_, err := svc.CreateProduct(ctx, paper)
	require.NoError(t, err)

	page, err := svc.ListProducts(ctx, ListProductsRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "PAPER-1", page.Products[0].ProductID)
	assert.Equal(t, 4, page.Pagination.TotalItems)
	assert.True(t, page.Pagination.HasNextPage)

	page, err = svc.ListProducts(ctx, ListProductsRequest{Search: "ballpoint", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 3)

	page, err = svc.ListProducts(ctx, ListProductsRequest{InStock: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 3)

	page, err = svc.ListProducts(ctx, ListProductsRequest{Category: "Paper", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 1)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Office", "Paper"}, categories)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	ctx := context.Background()
	_, svc := setupProducts(t)

	_, err := svc.CreateProduct(ctx, createRequest("PEN-001", "1", 5))
	require.NoError(t, err)

	name := "Gel pen"
	price := decimal.RequireFromString("2.25")
	p, err := svc.UpdateProduct(ctx, "PEN-001", &UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Gel pen", p.Name)
	assert.Equal(t, "Office", p.Category)
	assert.True(t, price.Equal(p.Price))

	_, err = svc.UpdateProduct(ctx, "NOPE", &UpdateProductRequest{Name: &name})
	assert.Equal(t, KindNotFound, KindOf(err))

	require.NoError(t, svc.DeleteProduct(ctx, "PEN-001"))
	_, err = svc.GetProduct(ctx, "PEN-001")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(svc.DeleteProduct(ctx, "PEN-001")))

	active := true
	_, err = svc.UpdateProduct(ctx, "PEN-001", &UpdateProductRequest{IsActive: &active})
	require.NoError(t, err)
	_, err = svc.GetProduct(ctx, "PEN-001")
	assert.NoError(t, err)
}

func TestProductLookupNormalizesID(t *testing.T) {
	ctx := context.Background()
	mem, svc := setupProducts(t)

	_, err := svc.CreateProduct(ctx, createRequest("p-1", "3.00", 5))
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, " p-1")
	require.NoError(t, err)
	assert.Equal(t, "P-1", got.ProductID)

	stock := 8
	_, err = svc.UpdateStock(ctx, "p-1", &UpdateStockRequest{StockQuantity: &stock})
	require.NoError(t, err)
	stored, err := mem.GetProduct(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stored.StockQuantity)

	name := "Marker"
	_, err = svc.UpdateProduct(ctx, "p-1", &UpdateProductRequest{Name: &name})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, "p-1"))
	_, err = svc.GetProduct(ctx, "P-1")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateStockAndLowStock(t *testing.T) {
	ctx := context.Background()
	_, svc := setupProducts(t)

	_, err := svc.CreateProduct(ctx, createRequest("PEN-001", "1", 50))
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, createRequest("PEN-002", "1", 50))
	require.NoError(t, err)

	qty, reorder := 3, 5
	p, err := svc.UpdateStock(ctx, "PEN-001", &UpdateStockRequest{StockQuantity: &qty, MinStockLevel: &reorder})
	require.NoError(t, err)
	assert.True(t, p.LowStock())

	low, err := svc.LowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "PEN-001", low[0].ProductID)

	neg := -1
	_, err = svc.UpdateStock(ctx, "PEN-001", &UpdateStockRequest{StockQuantity: &neg})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.UpdateStock(ctx, "NOPE", &UpdateStockRequest{StockQuantity: &qty})
	assert.Equal(t, KindNotFound, KindOf(err))
}
