package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "finmark/docs"
	"finmark/internal/models"
	"finmark/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// ReadinessCheck is one dependency probed by /ready
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	authService      *service.AuthService
	productService   *service.ProductService
	orderService     *service.OrderService
	userService      *service.UserService
	dashboardService *service.DashboardService

	limiter    RateLimiter
	checks     []ReadinessCheck
	pagination PageLimits
	proxies    []string
	startedAt  time.Time
}

// PageLimits bounds list queries
type PageLimits struct {
	Default int
	Max     int
}

// Options carries the optional parts of a Handler
type Options struct {
	// Limiter is applied to every /api route; nil disables rate limiting
	Limiter    RateLimiter
	Checks     []ReadinessCheck
	Pagination PageLimits

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is believed. Empty means the peer address is the client.
	TrustedProxies []string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authService *service.AuthService,
	productService *service.ProductService,
	orderService *service.OrderService,
	userService *service.UserService,
	dashboardService *service.DashboardService,
	opts Options,
) *Handler {
	if opts.Pagination.Default <= 0 {
		opts.Pagination.Default = 10
	}
	if opts.Pagination.Max <= 0 {
		opts.Pagination.Max = 100
	}
	return &Handler{
		authService:      authService,
		productService:   productService,
		orderService:     orderService,
		userService:      userService,
		dashboardService: dashboardService,
		limiter:          opts.Limiter,
		checks:           opts.Checks,
		pagination:       opts.Pagination,
		proxies:          opts.TrustedProxies,
		startedAt:        time.Now(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) error {
	if err := router.SetTrustedProxies(h.proxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(accessLogMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.NoRoute(func(c *gin.Context) {
		respondFail(c, http.StatusNotFound, "API endpoint not found")
	})

	api := router.Group("/api")
	if h.limiter != nil {
		api.Use(rateLimitMiddleware(h.limiter))
	}

	authenticated := authMiddleware(h.authService)
	staff := requireRole(models.RoleManager, models.RoleAdmin)
	admin := requireRole(models.RoleAdmin)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/profile", authenticated, h.getProfile)
		auth.PUT("/profile", authenticated, h.updateProfile)
		auth.PUT("/change-password", authenticated, h.changePassword)
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/categories", h.listCategories)
		products.GET("/inventory/low-stock", authenticated, staff, h.lowStockProducts)
		products.GET("/:productId", h.getProduct)
		products.POST("", authenticated, staff, h.createProduct)
		products.PUT("/:productId", authenticated, staff, h.updateProduct)
		products.DELETE("/:productId", authenticated, staff, h.deleteProduct)
		products.PUT("/:productId/stock", authenticated, staff, h.updateStock)
	}

	orders := api.Group("/orders", authenticated)
	{
		orders.POST("", h.createOrder)
		orders.GET("", h.listMyOrders)
		orders.GET("/all", staff, h.listAllOrders)
		orders.GET("/stats", staff, h.orderStats)
		orders.GET("/:orderId", h.getOrder)
		orders.PUT("/:orderId/status", staff, h.updateOrderStatus)
		orders.PUT("/:orderId/cancel", h.cancelOrder)
	}

	users := api.Group("/users", authenticated)
	{
		users.GET("/me/addresses", h.getAddresses)
		users.POST("/me/addresses", h.addAddress)
		users.PUT("/me/addresses/:index", h.updateAddress)
		users.DELETE("/me/addresses/:index", h.deleteAddress)

		users.GET("", admin, h.listUsers)
		users.GET("/:id", admin, h.getUser)
		users.PUT("/:id", admin, h.updateUser)
		users.DELETE("/:id", admin, h.deactivateUser)
	}

	api.GET("/dashboard", authenticated, h.dashboard)
	return nil
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "FinMark API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			requestLogger(c).Warn("Readiness check failed", zap.String("dependency", check.Name), zap.Error(err))
			results[check.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "up"
	}

	c.JSON(status, gin.H{
		"success": status == http.StatusOK,
		"checks":  results,
		"time":    time.Now().Unix(),
	})
}
