package api

import (
	"net/http"
	"strconv"

	"finmark/internal/models"
	"finmark/internal/service"

	"github.com/gin-gonic/gin"
)

func addressIndex(c *gin.Context) (int, error) {
	raw := c.Param("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.FieldInvalid("index", "Invalid address index.", raw)
	}
	return i, nil
}

func (h *Handler) getAddresses(c *gin.Context) {
	addrs, err := h.userService.GetAddresses(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"addresses": addrs})
}

func (h *Handler) addAddress(c *gin.Context) {
	var addr models.ShippingAddress
	if !bindJSON(c, &addr) {
		return
	}

	addrs, err := h.userService.AddAddress(c.Request.Context(), currentUser(c).ID, &addr)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Address added successfully.", gin.H{"addresses": addrs})
}

func (h *Handler) updateAddress(c *gin.Context) {
	index, err := addressIndex(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var addr models.ShippingAddress
	if !bindJSON(c, &addr) {
		return
	}

	addrs, err := h.userService.UpdateAddress(c.Request.Context(), currentUser(c).ID, index, &addr)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Address updated successfully.", gin.H{"addresses": addrs})
}

func (h *Handler) deleteAddress(c *gin.Context) {
	index, err := addressIndex(c)
	if err != nil {
		respondError(c, err)
		return
	}

	addrs, err := h.userService.DeleteAddress(c.Request.Context(), currentUser(c).ID, index)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Address deleted successfully.", gin.H{"addresses": addrs})
}

func (h *Handler) listUsers(c *gin.Context) {
	page, limit, err := h.pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.userService.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", res)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": user})
}

func (h *Handler) updateUser(c *gin.Context) {
	var req service.AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User updated successfully.", gin.H{"user": user})
}

func (h *Handler) deactivateUser(c *gin.Context) {
	if err := h.userService.DeactivateUser(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User deactivated successfully.", nil)
}

// @Summary Dashboard data for the caller's role
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /dashboard [get]
func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.dashboardService.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", d)
}
