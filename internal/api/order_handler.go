package api

import (
	"net/http"

	"finmark/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary Place an order
// @Description Stock is reserved atomically. Repeating a request with the same
// @Description Idempotency-Key returns the original order with status 200.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key"
// @Param input body service.CreateOrderRequest true "Order"
// @Success 201 {object} Response
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /orders [post]
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	order, created, err := h.orderService.CreateOrder(c.Request.Context(), currentUser(c).ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if !created {
		respond(c, http.StatusOK, "Order already placed.", gin.H{"order": order})
		return
	}
	respond(c, http.StatusCreated, "Order created successfully.", gin.H{"order": order})
}

func (h *Handler) listOrders(c *gin.Context, userID string) {
	page, limit, err := h.pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.orderService.ListOrders(c.Request.Context(), service.ListOrdersRequest{
		UserID: userID,
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", res)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	h.listOrders(c, currentUser(c).ID)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	h.listOrders(c, "")
}

// @Summary Get order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /orders/{orderId} [get]
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"order": order})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req service.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), c.Param("orderId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order updated successfully.", gin.H{"order": order})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := h.orderService.CancelOrder(c.Request.Context(), currentUser(c).ID, c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order cancelled successfully.", gin.H{"order": order})
}

func (h *Handler) orderStats(c *gin.Context) {
	from, err := dateParam(c, "startDate", false)
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := dateParam(c, "endDate", true)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.orderService.GetOrderStats(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"stats": stats})
}
