package worker

import (
	"context"

	"finmark/internal/broker"
	"finmark/internal/service"
	"finmark/internal/util"

	"go.uber.org/zap"
)

// Source delivers messages to a handler until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// InventoryWorker consumes order events and tracks low-stock transitions
type InventoryWorker struct {
	source       Source
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewInventoryWorker creates a new inventory worker
func NewInventoryWorker(source Source, alerts *service.InventoryAlerts) *InventoryWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(alerts.HandleOrderCreated)
	eventHandler.OnOrderCancelled(alerts.HandleOrderCancelled)

	return &InventoryWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *InventoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inventory worker")
	err := w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop stops the worker
func (w *InventoryWorker) Stop() error {
	w.logger.Info("Stopping inventory worker")
	return w.source.Close()
}
