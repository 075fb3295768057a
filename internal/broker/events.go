package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"finmark/internal/models"
	"finmark/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events. Order lifecycle events go
// to the order topic and stock alerts to the stock topic. A nil producer only
// logs the event, which is how the service runs without Kafka.
type EventPublisher struct {
	orders *Producer
	stock  *Producer
	logger *zap.Logger
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, stock *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, stock: stock, logger: util.GetLogger()}
}

func (ep *EventPublisher) publish(ctx context.Context, p *Producer, key string, base models.BaseEvent, event interface{}) error {
	if p == nil {
		ep.logger.Info("Event",
			zap.String("event_type", base.EventType),
			zap.String("event_id", base.EventID),
			zap.String("key", key))
		return nil
	}
	return p.PublishEvent(ctx, key, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, ep.orders, "order-"+event.OrderID, event.BaseEvent, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.publish(ctx, ep.orders, "order-"+event.OrderID, event.BaseEvent, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.publish(ctx, ep.orders, "order-"+event.OrderID, event.BaseEvent, event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	return ep.publish(ctx, ep.stock, "product-"+event.ProductID, event.BaseEvent, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated   func(context.Context, *models.OrderCreatedEvent) error
	onOrderCancelled func(context.Context, *models.OrderCancelledEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	case models.EventTypeOrderStatusChanged:
		// informational, nothing consumes it in-process

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
