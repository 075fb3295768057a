package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finmark/internal/models"
	"finmark/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	userKey         = "user"
)

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// requestIDMiddleware tags each request with an id and a logger carrying it
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		logger := util.GetLogger().With(zap.String("request_id", requestID))
		c.Request = c.Request.WithContext(util.WithLogger(c.Request.Context(), logger))

		c.Next()
	}
}

// accessLogMiddleware logs one line per request
func accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		requestLogger(c).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// authMiddleware requires a valid bearer token of an active account
func authMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondFail(c, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			respondFail(c, http.StatusUnauthorized, "Invalid authorization header format.")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			requestLogger(c).Debug("Authentication failed", zap.Error(err))
			respondError(c, err)
			return
		}

		c.Set(userKey, user)
		logger := requestLogger(c).With(zap.String("user_id", user.ID))
		c.Request = c.Request.WithContext(util.WithLogger(c.Request.Context(), logger))

		c.Next()
	}
}

// requireRole lets through only users holding one of roles
func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondFail(c, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		respondFail(c, http.StatusForbidden, "Access denied. Insufficient permissions.")
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// rateLimitMiddleware caps requests per client IP
func rateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// fail open
			requestLogger(c).Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			util.RateLimitedTotal.Inc()
			secs := int((retryAfter + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
				Success:    false,
				Message:    "Too many requests from this IP, please try again later.",
				RetryAfter: secs,
			})
			return
		}
		c.Next()
	}
}
