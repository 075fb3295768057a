package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finmark/internal/models"
)

const orderColumns = `id, order_number, user_id, customer_info, items, order_total, status, payment_status,
	shipping_address, notes, COALESCE(idempotency_key, '') AS idempotency_key, estimated_delivery,
	actual_delivery, created_at, updated_at`

// CreateOrder inserts a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, customer_info, items, order_total, status,
			payment_status, shipping_address, notes, idempotency_key, estimated_delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)
		RETURNING created_at, updated_at`

	err := s.get(ctx, order, query,
		order.ID, order.OrderNumber, order.UserID, order.CustomerInfo, order.Items, order.OrderTotal,
		order.Status, order.PaymentStatus, order.ShippingAddress, order.Notes, order.IdempotencyKey,
		order.EstimatedDelivery)
	return mapError(err)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUpdate retrieves an order and locks its row until the
// surrounding transaction ends
func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves the order a user placed with key.
// It returns nil when there is none.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND idempotency_key = $2", userID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder writes the lifecycle columns of an order
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET status = $2, payment_status = $3, notes = $4, actual_delivery = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return s.get(ctx, &order.UpdatedAt, query,
		order.ID, order.Status, order.PaymentStatus, order.Notes, order.ActualDelivery)
}

// ListOrders returns a page of orders, newest first, and the total count
func (s *Store) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM orders WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		orderColumns, cond, len(args)-1, len(args))

	orders := []models.Order{}
	err := s.selectRows(ctx, &orders, query, args...)
	return orders, total, err
}

// OrderStats aggregates orders created in [from, to]. Nil bounds are open.
func (s *Store) OrderStats(ctx context.Context, from, to *time.Time) (*models.OrderStats, error) {
	const cond = "($1::timestamptz IS NULL OR created_at >= $1) AND ($2::timestamptz IS NULL OR created_at <= $2)"

	stats := &models.OrderStats{}
	err := s.get(ctx, stats,
		"SELECT COUNT(*) AS total_orders, COALESCE(SUM(order_total), 0) AS total_revenue FROM orders WHERE "+cond,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	stats.StatusBreakdown = []models.StatusCount{}
	err = s.selectRows(ctx, &stats.StatusBreakdown,
		"SELECT status AS key, COUNT(*) AS count FROM orders WHERE "+cond+" GROUP BY status ORDER BY status", from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order status: %w", err)
	}

	stats.PaymentBreakdown = []models.StatusCount{}
	err = s.selectRows(ctx, &stats.PaymentBreakdown,
		"SELECT payment_status AS key, COUNT(*) AS count FROM orders WHERE "+cond+" GROUP BY payment_status ORDER BY payment_status", from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payment status: %w", err)
	}

	return stats, nil
}
