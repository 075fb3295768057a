package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_replayed_total",
		Help: "Total number of order submissions answered from an earlier idempotency key",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrderStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status changes",
	}, []string{"from", "to"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of stock changes",
	}, []string{"reason"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	LowStockRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_recovered_total",
		Help: "Total number of products lifted above their reorder level by a cancellation",
	})

	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Total number of register and login attempts",
	}, []string{"action", "result"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
