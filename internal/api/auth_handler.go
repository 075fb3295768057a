package api

import (
	"net/http"

	"finmark/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param input body service.RegisterRequest true "Account"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully.", res)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param input body service.LoginRequest true "Credentials"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Login successful.", res)
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": user})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), currentUser(c).ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully.", gin.H{"user": user})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), currentUser(c).ID, &req); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully.", nil)
}
