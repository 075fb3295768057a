package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finmark/internal/models"
	"finmark/internal/store"
	"finmark/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultShippingCountry = "USA"

// OrderStore is the storage an OrderService needs
type OrderStore interface {
	ProductRepository
	OrderRepository
	Transactor
}

// OrderService handles order business logic
type OrderService struct {
	store             OrderStore
	locker            Locker
	eventPublisher    EventPublisher
	estimatedDelivery time.Duration
	lockTTL           time.Duration
	now               func() time.Time
	logger            *zap.Logger
}

// OrderOptions tunes OrderService
type OrderOptions struct {
	EstimatedDelivery time.Duration
	LockTTL           time.Duration
}

// NewOrderService creates a new order service. locker may be nil, in which
// case concurrent submissions with the same idempotency key are resolved by
// the unique index alone.
func NewOrderService(store OrderStore, locker Locker, eventPublisher EventPublisher, opts OrderOptions) *OrderService {
	if opts.EstimatedDelivery == 0 {
		opts.EstimatedDelivery = 7 * 24 * time.Hour
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &OrderService{
		store:             store,
		locker:            locker,
		eventPublisher:    eventPublisher,
		estimatedDelivery: opts.EstimatedDelivery,
		lockTTL:           opts.LockTTL,
		now:               time.Now,
		logger:            util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	CustomerInfo    models.CustomerInfo    `json:"customerInfo"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	Notes           string                 `json:"notes" validate:"max=500"`
	IdempotencyKey  string                 `json:"idempotencyKey" validate:"max=255"`
}

// OrderItemRequest represents an item in an order. The price charged is
// always the catalog price; a client supplied unit price is only checked
// for sanity.
type OrderItemRequest struct {
	ProductID   string           `json:"productId" validate:"required"`
	ProductName string           `json:"productName" validate:"max=100"`
	Quantity    int              `json:"quantity" validate:"required,min=1"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

// ListOrdersRequest carries order listing filters. An empty UserID lists all orders.
type ListOrdersRequest struct {
	UserID string `json:"-"`
	Status string `json:"status" validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// UpdateOrderStatusRequest is a staff update of an order. Nil fields are left unchanged.
type UpdateOrderStatusRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled"`
	PaymentStatus *string `json:"paymentStatus" validate:"omitempty,oneof=pending paid failed refunded"`
	Notes         *string `json:"notes" validate:"omitempty,max=500"`
}

// OrderPage is one page of an order listing
type OrderPage struct {
	Orders     []models.Order    `json:"orders"`
	Pagination models.Pagination `json:"pagination"`
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:9]
	return fmt.Sprintf("FM-%d-%s", now.UnixMilli(), suffix)
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}

func validOrderID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return FieldInvalid("orderId", "Invalid order ID format.", id)
	}
	return nil
}

func unitPriceErrors(items []OrderItemRequest) []FieldError {
	var fields []FieldError
	for i, item := range items {
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].unitPrice", i),
				Message: "Unit price cannot be negative.",
				Value:   item.UnitPrice.String(),
			})
		}
	}
	return fields
}

// CreateOrder places an order for userID. Stock is checked and decremented
// for every line and the order inserted in one transaction, so a failing line
// leaves all stock untouched. A repeated idempotency key returns the order
// created the first time; created reports which case applied.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (order *models.Order, created bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.CustomerInfo.Email = normalizeEmail(req.CustomerInfo.Email)
	for i := range req.Items {
		req.Items[i].ProductID = normalizeProductID(req.Items[i].ProductID)
	}
	if err := validateStruct(req, unitPriceErrors(req.Items)...); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, false, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.replayed(existing, req.IdempotencyKey)
			return existing, false, nil
		}

		if s.locker != nil {
			lockKey := fmt.Sprintf("order:%s:%s", userID, req.IdempotencyKey)
			token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
			if err != nil {
				s.logger.Warn("Idempotency lock unavailable, relying on unique index", zap.Error(err))
			} else if token == "" {
				return nil, false, Conflict("An order with this idempotency key is already being processed.")
			} else {
				defer func() {
					if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
						s.logger.Warn("Failed to release idempotency lock", zap.String("key", lockKey), zap.Error(err))
					}
				}()

				// the first submission may have committed while we waited for the lock
				existing, err := s.store.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
				if err != nil {
					return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
				}
				if existing != nil {
					s.replayed(existing, req.IdempotencyKey)
					return existing, false, nil
				}
			}
		}
	}

	start := time.Now()
	order, err = s.placeOrder(ctx, userID, req)
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) && req.IdempotencyKey != "" {
			// lost a race against a concurrent submission with the same key
			existing, getErr := s.store.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
			if getErr == nil && existing != nil {
				s.replayed(existing, req.IdempotencyKey)
				return existing, false, nil
			}
		}

		reason := "db_error"
		if KindOf(err) == KindUnavailable {
			reason = "unavailable"
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		util.RecordError(span, err)
		if KindOf(err) != KindInternal {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	util.StockAdjustmentsTotal.WithLabelValues("order").Add(float64(len(order.Items)))
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.String("total", order.OrderTotal.String()))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated, order.CreatedAt),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		OrderTotal:  order.OrderTotal,
		Items:       order.Items.ItemData(),
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, true, nil
}

func (s *OrderService) replayed(order *models.Order, key string) {
	util.OrdersReplayedTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", order.ID))
}

func (s *OrderService) placeOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*models.Order, error) {
	now := s.now()
	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     newOrderNumber(now),
		UserID:          userID,
		CustomerInfo:    req.CustomerInfo,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: req.ShippingAddress,
		Notes:           strings.TrimSpace(req.Notes),
		IdempotencyKey:  req.IdempotencyKey,
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = defaultShippingCountry
	}
	eta := now.Add(s.estimatedDelivery)
	order.EstimatedDelivery = &eta

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		items := make(models.OrderItems, 0, len(req.Items))
		for _, line := range req.Items {
			p, err := s.store.GetProductForUpdate(ctx, line.ProductID)
			if errors.Is(err, store.ErrNotFound) || (err == nil && !p.IsActive) {
				return Unavailable("Product %s is not available.", line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("failed to lock product %s: %w", line.ProductID, err)
			}

			if line.Quantity > p.StockQuantity {
				return Unavailable("Insufficient stock for %s. Available: %d", p.Name, p.StockQuantity)
			}
			if _, err := s.store.AdjustStock(ctx, p.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return Unavailable("Insufficient stock for %s.", p.Name)
				}
				return fmt.Errorf("failed to decrement stock for %s: %w", p.ProductID, err)
			}

			items = append(items, models.OrderItem{
				ProductID:   p.ProductID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
				TotalPrice:  p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			})
		}

		order.Items = items
		order.OrderTotal = items.Total()
		return s.store.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns a page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	orders, total, err := s.store.ListOrders(ctx, models.OrderFilter{
		UserID: req.UserID,
		Status: models.OrderStatus(req.Status),
		Offset: (req.Page - 1) * req.Limit,
		Limit:  req.Limit,
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &OrderPage{
		Orders:     orders,
		Pagination: models.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// GetOrder returns an order. Customers only see their own orders; staff see all.
func (s *OrderService) GetOrder(ctx context.Context, actor *models.User, orderID string) (*models.Order, error) {
	if err := validOrderID(orderID); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("Order not found.")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !actor.Role.IsStaff() && order.UserID != actor.ID {
		return nil, NotFound("Order not found.")
	}
	return order, nil
}

// restoreStock puts the quantities of order back on the shelf. Products that
// no longer exist are skipped.
func (s *OrderService) restoreStock(ctx context.Context, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := s.store.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("Product gone, stock not restored",
					zap.String("order_id", order.ID),
					zap.String("product_id", item.ProductID))
				continue
			}
			return fmt.Errorf("failed to restore stock for %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// CancelOrder cancels one of the caller's orders and restores its stock
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	if err := validOrderID(orderID); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && order.UserID != userID) {
			return NotFound("Order not found.")
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		if order.Status.IsTerminal() {
			return InvalidTransition("Order cannot be cancelled in its current status.")
		}

		order.Status = models.OrderStatusCancelled
		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return s.restoreStock(ctx, order)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.afterCancel(ctx, order, "cancelled by customer")
	return order, nil
}

func (s *OrderService) afterCancel(ctx context.Context, order *models.Order, reason string) {
	util.OrdersCancelledTotal.Inc()
	util.StockAdjustmentsTotal.WithLabelValues("cancel").Add(float64(len(order.Items)))
	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled, s.now()),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Reason:      reason,
		Items:       order.Items.ItemData(),
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// UpdateOrderStatus moves an order along its lifecycle. Status only moves
// forward; delivered and cancelled are terminal. Cancelling restores stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, req *UpdateOrderStatusRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if err := validOrderID(orderID); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var order *models.Order
	var from models.OrderStatus
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("Order not found.")
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}
		from = order.Status

		if req.Status != nil && models.OrderStatus(*req.Status) != order.Status {
			to := models.OrderStatus(*req.Status)
			if !order.Status.CanTransitionTo(to) {
				return InvalidTransition("Cannot change order status from %s to %s.", order.Status, to)
			}
			order.Status = to
			if to == models.OrderStatusDelivered {
				now := s.now()
				order.ActualDelivery = &now
			}
		}
		if req.PaymentStatus != nil {
			order.PaymentStatus = models.PaymentStatus(*req.PaymentStatus)
		}
		if req.Notes != nil {
			order.Notes = strings.TrimSpace(*req.Notes)
		}

		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		if from != order.Status && order.Status == models.OrderStatusCancelled {
			return s.restoreStock(ctx, order)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if from != order.Status {
		util.OrderStatusTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
		s.logger.Info("Order status changed",
			zap.String("order_id", order.ID),
			zap.String("from", string(from)),
			zap.String("to", string(order.Status)))

		event := &models.OrderStatusChangedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeOrderStatusChanged, s.now()),
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			From:          from,
			To:            order.Status,
			PaymentStatus: order.PaymentStatus,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.String("order_id", order.ID), zap.Error(err))
		}
		if order.Status == models.OrderStatusCancelled {
			s.afterCancel(ctx, order, "cancelled by staff")
		}
	}

	return order, nil
}

// GetOrderStats aggregates orders created in [from, to]. Nil bounds are open.
func (s *OrderService) GetOrderStats(ctx context.Context, from, to *time.Time) (*models.OrderStats, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderStats")
	defer span.End()

	if from != nil && to != nil && to.Before(*from) {
		return nil, FieldInvalid("endDate", "endDate must not be before startDate", to.Format(time.RFC3339))
	}

	stats, err := s.store.OrderStats(ctx, from, to)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to compute order stats: %w", err)
	}
	return stats, nil
}
