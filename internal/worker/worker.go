package worker

import (
	"context"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers messages from one topic to a handler
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// CallbackHandler applies a gateway payment callback
type CallbackHandler interface {
	HandleCallback(ctx context.Context, cb *models.PaymentCallbackEvent) error
}

// PaymentWorker applies payment callbacks relayed through the
// payment-callbacks topic
type PaymentWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(source MessageSource, payments CallbackHandler) *PaymentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCallback(payments.HandleCallback)

	return &PaymentWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.Logger("payment-worker"),
	}
}

// Start consumes until ctx is cancelled
func (w *PaymentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the payment worker
func (w *PaymentWorker) Stop() error {
	w.logger.Info("Stopping payment worker")
	return w.source.Close()
}
