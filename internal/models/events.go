package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeStockLow           = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is placed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published when staff move an order along its lifecycle
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	From          OrderStatus   `json:"from"`
	To            OrderStatus   `json:"to"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// OrderCancelledEvent published when an order is cancelled and its stock restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Reason      string          `json:"reason"`
	Items       []OrderItemData `json:"items"`
}

// StockLowEvent published by the inventory worker
type StockLowEvent struct {
	BaseEvent
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	MinStockLevel int    `json:"min_stock_level"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemData converts order lines to their event form
func (items OrderItems) ItemData() []OrderItemData {
	out := make([]OrderItemData, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemData{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}
