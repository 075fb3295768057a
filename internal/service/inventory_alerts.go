package service

import (
	"context"
	"fmt"

	"finmark/internal/models"
	"finmark/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertStore is the storage an InventoryAlerts reads
type AlertStore interface {
	ProductRepository
	EventLog
}

// InventoryAlerts reacts to placed orders by flagging products that fell to
// or below their reorder level, and to cancellations that lifted them back up
type InventoryAlerts struct {
	store          AlertStore
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewInventoryAlerts creates the low-stock alert handler
func NewInventoryAlerts(store AlertStore, eventPublisher EventPublisher) *InventoryAlerts {
	return &InventoryAlerts{store: store, eventPublisher: eventPublisher, logger: util.GetLogger()}
}

// HandleOrderCreated checks every product of the order. Each event is
// handled once; redeliveries are skipped.
func (a *InventoryAlerts) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryAlerts.HandleOrderCreated")
	defer span.End()

	processed, err := a.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event log: %w", err)
	}
	if processed {
		a.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	ids := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := a.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to load products: %w", err)
	}

	for i := range products {
		p := &products[i]
		if !p.IsActive || !p.LowStock() {
			continue
		}

		util.LowStockAlertsTotal.Inc()
		a.logger.Warn("Product stock is low",
			zap.String("product_id", p.ProductID),
			zap.String("order_id", event.OrderID),
			zap.Int("stock", p.StockQuantity),
			zap.Int("min_stock_level", p.MinStockLevel))

		alert := &models.StockLowEvent{
			BaseEvent:     newBaseEvent(models.EventTypeStockLow, event.Timestamp),
			ProductID:     p.ProductID,
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			MinStockLevel: p.MinStockLevel,
		}
		alert.EventID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(event.EventID+"/"+p.ProductID)).String()
		if err := a.eventPublisher.PublishStockLow(ctx, alert); err != nil {
			return fmt.Errorf("failed to publish StockLow event: %w", err)
		}
	}

	return a.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// HandleOrderCancelled reports products whose restored stock moved them from
// low to healthy.
func (a *InventoryAlerts) HandleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryAlerts.HandleOrderCancelled")
	defer span.End()

	processed, err := a.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event log: %w", err)
	}
	if processed {
		a.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	restored := make(map[string]int, len(event.Items))
	ids := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		if _, ok := restored[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		restored[item.ProductID] += item.Quantity
	}

	products, err := a.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to load products: %w", err)
	}

	for i := range products {
		p := &products[i]
		before := p.StockQuantity - restored[p.ProductID]
		if !p.IsActive || p.LowStock() || before > p.MinStockLevel {
			continue
		}

		util.LowStockRecoveredTotal.Inc()
		a.logger.Info("Product stock recovered",
			zap.String("product_id", p.ProductID),
			zap.String("order_id", event.OrderID),
			zap.Int("stock", p.StockQuantity),
			zap.Int("min_stock_level", p.MinStockLevel))
	}

	return a.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
