package service

import (
	"context"
	"time"

	"finmark/internal/models"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=service

// Locker guards a critical section across processes
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher emits domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}
