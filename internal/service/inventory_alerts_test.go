package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"finmark/internal/models"
	"finmark/internal/store"
	"finmark/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func orderCreated(eventID string, productIDs ...string) *models.OrderCreatedEvent {
	e := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: eventID, EventType: models.EventTypeOrderCreated, Timestamp: time.Now()},
		OrderID:   "order-1",
	}
	for _, id := range productIDs {
		e.Items = append(e.Items, models.OrderItemData{ProductID: id, Quantity: 1})
	}
	return e
}

func TestInventoryAlerts(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mem := store.NewMemoryStore()
	seedProduct(t, mem, "LOW-1", "1.00", 1)
	seedProduct(t, mem, "OK-1", "1.00", 40)

	pub := NewMockEventPublisher(ctrl)
	pub.EXPECT().PublishStockLow(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *models.StockLowEvent) error {
			assert.Equal(t, "LOW-1", e.ProductID)
			assert.Equal(t, models.EventTypeStockLow, e.EventType)
			assert.Equal(t, 1, e.StockQuantity)
			return nil
		}).Times(1)
	alerts := NewInventoryAlerts(mem, pub)

	event := orderCreated("evt-1", "LOW-1", "OK-1", "GONE-1")
	require.NoError(t, alerts.HandleOrderCreated(ctx, event))

	// redelivery is a no-op
	require.NoError(t, alerts.HandleOrderCreated(ctx, event))

	processed, err := mem.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInventoryAlerts_PublishFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mem := store.NewMemoryStore()
	seedProduct(t, mem, "LOW-1", "1.00", 0)

	pub := NewMockEventPublisher(ctrl)
	gomock.InOrder(
		pub.EXPECT().PublishStockLow(gomock.Any(), gomock.Any()).Return(errors.New("broker down")),
		pub.EXPECT().PublishStockLow(gomock.Any(), gomock.Any()).Return(nil),
	)
	alerts := NewInventoryAlerts(mem, pub)

	event := orderCreated("evt-2", "LOW-1")
	assert.Error(t, alerts.HandleOrderCreated(ctx, event))

	processed, err := mem.IsEventProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, alerts.HandleOrderCreated(ctx, event))
}

func TestInventoryAlerts_CancellationRecovery(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mem := store.NewMemoryStore()
	seedProduct(t, mem, "BACK-1", "1.00", 3)
	seedProduct(t, mem, "STILL-1", "1.00", 1)
	seedProduct(t, mem, "FINE-1", "1.00", 10)

	alerts := NewInventoryAlerts(mem, NewMockEventPublisher(ctrl))
	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-c1", EventType: models.EventTypeOrderCancelled, Timestamp: time.Now()},
		OrderID:   "order-1",
		Items: []models.OrderItemData{
			{ProductID: "BACK-1", Quantity: 1},
			{ProductID: "BACK-1", Quantity: 1},
			{ProductID: "STILL-1", Quantity: 1},
			{ProductID: "FINE-1", Quantity: 1},
		},
	}

	before := testutil.ToFloat64(util.LowStockRecoveredTotal)
	require.NoError(t, alerts.HandleOrderCancelled(ctx, event))
	assert.Equal(t, before+1, testutil.ToFloat64(util.LowStockRecoveredTotal))

	require.NoError(t, alerts.HandleOrderCancelled(ctx, event))
	assert.Equal(t, before+1, testutil.ToFloat64(util.LowStockRecoveredTotal))

	processed, err := mem.IsEventProcessed(ctx, "evt-c1")
	require.NoError(t, err)
	assert.True(t, processed)
}
