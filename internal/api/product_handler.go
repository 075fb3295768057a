package api

import (
	"net/http"

	"finmark/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary List products
// @Tags products
// @Produce json
// @Param category query string false "Category"
// @Param search query string false "Substring of name, description or product id"
// @Param inStock query bool false "Only products in stock"
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, at most 100"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /products [get]
func (h *Handler) listProducts(c *gin.Context) {
	page, limit, err := h.pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	inStock, err := boolQuery(c, "inStock")
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.productService.ListProducts(c.Request.Context(), service.ListProductsRequest{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		InStock:  inStock,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", res)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.productService.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"categories": categories})
}

// @Summary Get product
// @Tags products
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /products/{productId} [get]
func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.productService.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"product": p})
}

func (h *Handler) lowStockProducts(c *gin.Context) {
	products, err := h.productService.LowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": products, "count": len(products)})
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body service.CreateProductRequest true "Product"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /products [post]
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Product created successfully.", gin.H{"product": p})
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.productService.UpdateProduct(c.Request.Context(), c.Param("productId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Product updated successfully.", gin.H{"product": p})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("productId")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Product deleted successfully.", nil)
}

func (h *Handler) updateStock(c *gin.Context) {
	var req service.UpdateStockRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.productService.UpdateStock(c.Request.Context(), c.Param("productId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock updated successfully.", gin.H{"product": p})
}
